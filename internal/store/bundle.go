package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/signalsfoundry/airspace-playback/core"
)

// Bundle file names inside a snapshot directory.
const (
	SimulationFile = "simulation.json"
	ConfigFile     = "config.json"
	StatisticsFile = "statistics.json"
	OwnerMapFile   = "owner_map.json"
)

var fileForKey = map[string]string{
	KeySimulation: SimulationFile,
	KeyConfig:     ConfigFile,
	KeyStatistics: StatisticsFile,
	KeyOwnerMap:   OwnerMapFile,
}

// Bundle is the raw set of documents one playback is built from.
type Bundle struct {
	Simulation []byte
	Config     []byte
	Statistics []byte
	OwnerMap   []byte
}

// SnapshotInput returns the documents core.DecodeSnapshot needs.
func (b Bundle) SnapshotInput() core.SnapshotInput {
	return core.SnapshotInput{
		Simulation: b.Simulation,
		Statistics: b.Statistics,
		OwnerMap:   b.OwnerMap,
	}
}

func (b Bundle) blob(key string) []byte {
	switch key {
	case KeySimulation:
		return b.Simulation
	case KeyConfig:
		return b.Config
	case KeyStatistics:
		return b.Statistics
	case KeyOwnerMap:
		return b.OwnerMap
	}
	return nil
}

func (b *Bundle) setBlob(key string, val []byte) {
	switch key {
	case KeySimulation:
		b.Simulation = val
	case KeyConfig:
		b.Config = val
	case KeyStatistics:
		b.Statistics = val
	case KeyOwnerMap:
		b.OwnerMap = val
	}
}

// ReadDir loads a bundle from path. A directory must hold simulation.json and
// may hold the companion files; a regular file is read as the simulation
// document alone.
func ReadDir(path string) (Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("read bundle: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return Bundle{}, fmt.Errorf("read bundle: %w", err)
		}
		return Bundle{Simulation: data}, nil
	}

	var b Bundle
	for _, key := range allKeys {
		data, err := os.ReadFile(filepath.Join(path, fileForKey[key]))
		if errors.Is(err, os.ErrNotExist) && key != KeySimulation {
			continue
		}
		if err != nil {
			return Bundle{}, fmt.Errorf("read bundle: %w", err)
		}
		b.setBlob(key, data)
	}
	return b, nil
}

// WriteDir writes the non-empty documents of b into dir.
func WriteDir(dir string, b Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	for _, key := range allKeys {
		data := b.blob(key)
		if len(data) == 0 {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, fileForKey[key]), data, 0o644); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
	}
	return nil
}
