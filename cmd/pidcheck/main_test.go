package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pidcheck/internal/ctxlog"
	"pidcheck/pkg/domain"
)

const loopDoc = `{
  // two pipes feeding each other
  "id": "loop",
  "name": "recirculation",
  "components": [
    {"id": "p1", "type": "pipe", "parameters": {"diameter": DIAMETER, "pressure_rating": 10}},
    {"id": "p2", "type": "pipe", "parameters": {"diameter": 50, "pressure_rating": 10}},
  ],
  "connections": [
    {"from": {"component": "p1", "port": "outlet"}, "to": {"component": "p2", "port": "inlet"}},
    {"from": {"component": "p2", "port": "outlet"}, "to": {"component": "p1", "port": "inlet"}},
  ],
}`

const danglingDoc = `{"components": [{"id": "p1", "type": "pipe", "parameters": {"diameter": 50, "pressure_rating": 10}}]}`

func isolateEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	old := getenv
	getenv = func(k string) string { return vars[k] }
	t.Cleanup(func() { getenv = old })
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	isolateEnv(t, nil)
	code, out, _ := run("version")
	if code != exitOK || out != "pidcheck version dev\n" {
		t.Fatalf("version = %d %q", code, out)
	}
}

func TestTypes(t *testing.T) {
	isolateEnv(t, nil)
	code, out, stderr := run("types")
	if code != exitOK {
		t.Fatalf("types failed: %s", stderr)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 || !strings.HasPrefix(lines[0], "ID") || !strings.HasPrefix(lines[1], "tank") || !strings.HasPrefix(lines[5], "pipe") {
		t.Fatalf("unexpected table:\n%s", out)
	}

	code, out, _ = run("types", "--json")
	if code != exitOK {
		t.Fatalf("types --json exit %d", code)
	}
	var types []map[string]any
	if err := json.Unmarshal([]byte(out), &types); err != nil || len(types) != 5 {
		t.Fatalf("unexpected JSON %v: %s", err, out)
	}
}

func TestTypesWithExtraCatalog(t *testing.T) {
	isolateEnv(t, nil)
	extra := writeFile(t, "extra.hcl", `
component "heat_exchanger" {
  name     = "Heat Exchanger"
  category = "exchanger"
  parameter "duty" {
    unit     = "kW"
    required = true
  }
  port "hot_in" {
    type      = "pipe"
    direction = "in"
  }
  constraints = ["duty > 0"]
}
`)
	code, out, stderr := run("--catalog", extra, "type", "heat_exchanger")
	if code != exitOK {
		t.Fatalf("type failed: %s", stderr)
	}
	if !strings.Contains(out, `"name": "Heat Exchanger"`) {
		t.Fatalf("unexpected type JSON:\n%s", out)
	}

	code, _, stderr = run("type", "heat_exchanger")
	if code != exitError || !strings.Contains(stderr, "not found") {
		t.Fatalf("expected not found without catalog, got %d %s", code, stderr)
	}
}

func TestValidateExitCodes(t *testing.T) {
	isolateEnv(t, nil)
	valid := writeFile(t, "valid.jsonc", strings.Replace(loopDoc, "DIAMETER", "50", 1))
	invalid := writeFile(t, "invalid.jsonc", strings.Replace(loopDoc, "DIAMETER", "0", 1))
	dangling := writeFile(t, "dangling.json", danglingDoc)
	broken := writeFile(t, "broken.json", `{"components": [{"id": "x", "type": "boiler"}]}`)

	cases := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"valid", []string{"validate", valid}, exitOK, "schematic loop: VALID"},
		{"invalid", []string{"validate", invalid}, exitInvalid, "schematic loop: INVALID"},
		{"incomplete", []string{"validate", dangling}, exitOK, "INCOMPLETE"},
		{"incomplete strict", []string{"validate", "--strict", dangling}, exitInvalid, "INCOMPLETE"},
		{"json", []string{"validate", "--format", "json", valid}, exitOK, `"overall_status": "valid"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out, stderr := run(tc.args...)
			if code != tc.code {
				t.Fatalf("exit = %d, want %d (stderr %s)", code, tc.code, stderr)
			}
			if !strings.Contains(out, tc.want) {
				t.Fatalf("output missing %q:\n%s", tc.want, out)
			}
		})
	}

	for _, args := range [][]string{
		{"validate", broken},
		{"validate", filepath.Join(t.TempDir(), "missing.json")},
		{"validate", "--format", "xml", valid},
		{"validate"},
	} {
		if code, _, _ := run(args...); code != exitError {
			t.Fatalf("%v: expected exit %d, got %d", args, exitError, code)
		}
	}
}

func TestValidateArchivesToFilesystem(t *testing.T) {
	root := t.TempDir()
	isolateEnv(t, map[string]string{
		"PIDCHECK_BLOB_DRIVER":  "fs",
		"PIDCHECK_BLOB_FS_ROOT": root,
	})
	doc := writeFile(t, "valid.json", strings.Replace(loopDoc, "DIAMETER", "50", 1))
	code, _, stderr := run("--log-level", "info", "validate", "--archive", doc)
	if code != exitOK {
		t.Fatalf("validate --archive failed: %s", stderr)
	}
	if !strings.Contains(stderr, "report archived") {
		t.Fatalf("expected archive log line, got %s", stderr)
	}
	matches, err := filepath.Glob(filepath.Join(root, "reports", "loop", "*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one archived report, got %v %v", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read archived report: %v", err)
	}
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil || r.Status != domain.StatusValid {
		t.Fatalf("archived report = %+v, %v", r, err)
	}
}

func TestConfigErrorsExit(t *testing.T) {
	isolateEnv(t, map[string]string{"PIDCHECK_STORAGE_DRIVER": "mongo"})
	code, _, stderr := run("types")
	if code != exitError || !strings.Contains(stderr, "unknown storage driver") {
		t.Fatalf("expected config error, got %d %s", code, stderr)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	isolateEnv(t, nil)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"pidcheck", "version"}
	stdout := os.Stdout
	devnull, err := os.Open(os.DevNull)
	if err == nil {
		os.Stdout = devnull
		defer func() { os.Stdout = stdout; _ = devnull.Close() }()
	}
	main()
	os.Args = []string{"pidcheck", "no-such-command"}
	main()
	if len(codes) != 2 || codes[0] != exitOK || codes[1] == exitOK {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}

func TestServeHandlerAndShutdown(t *testing.T) {
	isolateEnv(t, nil)
	g := &globals{stderr: io.Discard}
	e, err := g.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e.logger = ctxlog.Discard()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := newServeHandler(ctx, g, e, "statsd"); err == nil {
		t.Fatalf("expected unknown exporter error")
	}
	handler, err := newServeHandler(ctx, g, e, "prometheus")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, handler, e.logger) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/api/components/tank")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected go collector metrics")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServeExpvarExporter(t *testing.T) {
	isolateEnv(t, nil)
	g := &globals{stderr: io.Discard}
	e, err := g.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	handler, err := newServeHandler(context.Background(), g, e, "expvar")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Close() }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/debug/vars")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "pidcheck_service_metrics_") {
		t.Fatalf("expvar output missing recorder:\n%s", body)
	}
}
