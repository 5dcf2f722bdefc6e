package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/airspace-playback/internal/config"
	"github.com/signalsfoundry/airspace-playback/internal/control"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/session"
	"github.com/signalsfoundry/airspace-playback/internal/store"
)

const simulationJSON = `{
  "name": "cli",
  "environment": {"dimensions": {"x": 10, "y": 10, "z": 10, "t": 3}, "blockers": []},
  "path_owners": [
    {"id": "o1", "agents": [
      {"agent_type": "path", "id": "A", "paths": [{"positions": {"0": [0, 0, 0], "1": [1, 0, 0]}}]},
      {"agent_type": "path", "id": "B", "paths": [{"positions": {"1": [1, 0, 0], "2": [2, 0, 0]}}]}
    ]}
  ]
}`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), store.SimulationFile)
	if err := os.WriteFile(path, []byte(simulationJSON), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

func writeConfig(t *testing.T, storePath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playback.yaml")
	body := "log:\n  level: warn\nstore:\n  path: " + storePath + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestServeStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := config.Default()
	cfg.Store.InMemory = true
	cfg.Snapshot.Path = writeSnapshot(t)
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	runCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(runCtx, cfg, log, grpcLis, httpLis)
	}()

	conn, err := grpc.NewClient(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	view, err := control.NewClient(conn).GetView(ctx, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if got := view.GetFields()["name"].GetStringValue(); got != "cli" {
		t.Fatalf("view name = %q", got)
	}

	resp, err := http.Get("http://" + httpLis.Addr().String() + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz = %d", resp.StatusCode)
	}

	stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("run did not stop")
	}
}

func TestInspectPrintsSummary(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	out, err := execute(t, "--config", cfgPath, "inspect", writeSnapshot(t))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"cli", "agents:", "max tick:", "o1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestImportExportClear(t *testing.T) {
	cfgPath := writeConfig(t, filepath.Join(t.TempDir(), "db"))

	out, err := execute(t, "--config", cfgPath, "import", writeSnapshot(t))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, `imported "cli": 2 agents`) {
		t.Fatalf("import output = %q", out)
	}

	dir := filepath.Join(t.TempDir(), "export")
	if _, err := execute(t, "--config", cfgPath, "export", dir); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, store.SimulationFile))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != simulationJSON {
		t.Fatalf("exported simulation differs")
	}

	if _, err := execute(t, "--config", cfgPath, "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := execute(t, "--config", cfgPath, "export", t.TempDir()); err == nil {
		t.Fatalf("export after clear succeeded")
	}
}

func TestImportRejectsInvalidSnapshot(t *testing.T) {
	cfgPath := writeConfig(t, filepath.Join(t.TempDir(), "db"))
	path := filepath.Join(t.TempDir(), store.SimulationFile)
	if err := os.WriteFile(path, []byte(`{"name": "bad", "path_owners": [{"id": "o", "agents": [{"agent_type": "drone", "id": "x"}]}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "--config", cfgPath, "import", path); err == nil {
		t.Fatalf("import of invalid snapshot succeeded")
	}
}

func TestPlayAccelerated(t *testing.T) {
	sess := session.New(session.WithSelectAll())
	if err := sess.Load(context.Background(), store.Bundle{Simulation: []byte(simulationJSON)}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var out bytes.Buffer
	err := play(context.Background(), sess, playOptions{to: -1, accelerated: true, focus: "B"}, &out, logging.Noop())
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"tick 0: 1 active [A]",
		"tick 1: 2 active [A B]",
		"tick 2: 1 active [B]",
		"focus_on B",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("play output missing %q:\n%s", want, got)
		}
	}
}

func TestUnknownLogLevelRejected(t *testing.T) {
	if _, err := execute(t, "--log-level", "loud", "clear"); err == nil {
		t.Fatalf("invalid log level accepted")
	}
}
