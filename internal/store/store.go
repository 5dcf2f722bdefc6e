// Package store persists the snapshot blobs of the last loaded playback in an
// embedded badger database.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/signalsfoundry/airspace-playback/internal/logging"
)

// ErrNotFound is returned when a blob has never been persisted.
var ErrNotFound = errors.New("not found")

// Blob keys.
const (
	KeySimulation = "simulation"
	KeyConfig     = "config"
	KeyStatistics = "statistics"
	KeyOwnerMap   = "owner_map"
)

var allKeys = []string{KeySimulation, KeyConfig, KeyStatistics, KeyOwnerMap}

// Options configures Open.
type Options struct {
	Path     string
	InMemory bool
	Logger   logging.Logger
}

// Store wraps a badger database holding one snapshot bundle.
type Store struct {
	db       *badger.DB
	log      logging.Logger
	inMemory bool
}

type badgerLogger struct {
	log logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// Open opens (creating when needed) the database described by opts.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("store: path is required for a persistent store")
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", opts.Path, err)
		}
		bopts = badger.DefaultOptions(opts.Path).WithSyncWrites(true)
	}
	bopts = bopts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{log: log.With(logging.String("component", "badger"))})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Store{db: db, log: log, inMemory: opts.InMemory}, nil
}

// OpenInMemory opens a throwaway store.
func OpenInMemory(log logging.Logger) (*Store, error) {
	return Open(Options{InMemory: true, Logger: log})
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Persist replaces the stored bundle. Blobs that are empty in b are removed
// so a later load never mixes documents from two snapshots.
func (s *Store) Persist(ctx context.Context, b Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.Simulation) == 0 {
		return errors.New("store: bundle has no simulation document")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range allKeys {
			val := b.blob(key)
			if len(val) == 0 {
				if err := txn.Delete([]byte(key)); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set([]byte(key), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: persist: %w", err)
	}
	s.log.Info(ctx, "snapshot persisted",
		logging.Int("simulation_bytes", len(b.Simulation)),
		logging.Bool("has_statistics", len(b.Statistics) > 0),
		logging.Bool("has_owner_map", len(b.OwnerMap) > 0),
	)
	return nil
}

func (s *Store) load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("store: %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) LoadSimulationData(ctx context.Context) ([]byte, error) {
	return s.load(ctx, KeySimulation)
}

func (s *Store) LoadConfigData(ctx context.Context) ([]byte, error) {
	return s.load(ctx, KeyConfig)
}

func (s *Store) LoadStatisticsData(ctx context.Context) ([]byte, error) {
	return s.load(ctx, KeyStatistics)
}

func (s *Store) LoadOwnerMap(ctx context.Context) ([]byte, error) {
	return s.load(ctx, KeyOwnerMap)
}

// CanLoadSimulation reports whether a simulation document is stored.
func (s *Store) CanLoadSimulation(ctx context.Context) bool {
	_, err := s.LoadSimulationData(ctx)
	return err == nil
}

// LoadBundle reads every stored blob. Only the simulation document is
// required; the others are left empty when absent.
func (s *Store) LoadBundle(ctx context.Context) (Bundle, error) {
	var b Bundle
	for _, key := range allKeys {
		val, err := s.load(ctx, key)
		if errors.Is(err, ErrNotFound) && key != KeySimulation {
			continue
		}
		if err != nil {
			return Bundle{}, err
		}
		b.setBlob(key, val)
	}
	return b, nil
}

// Export writes the stored bundle into dir.
func (s *Store) Export(ctx context.Context, dir string) error {
	b, err := s.LoadBundle(ctx)
	if err != nil {
		return err
	}
	return WriteDir(dir, b)
}

// Clear removes every stored blob.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range allKeys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}
