package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/pipeline"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/testutil"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/writer"
)

type backend struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []string
	users  []string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"cluster_name":"test","version":{"number":"8.19.0"}}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		user, _, _ := r.BasicAuth()
		b.mu.Lock()
		b.bodies = append(b.bodies, string(body))
		b.users = append(b.users, user)
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bodies...)
}

// inTempDir keeps a stray ./config.yaml out of the test.
func inTempDir(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"TRACE", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetupLogging_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writer.log")
	log := SetupLogging("info", config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1})

	log.Debug("hidden")
	log.Infow("visible", "key", "value")
	// Syncing stderr fails on some terminals; the file core has nothing to flush.
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"visible"`)
	assert.Contains(t, string(data), `"key":"value"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestShipLogs(t *testing.T) {
	var (
		mu   sync.Mutex
		docs []string
	)
	sink := zapcore.AddSync(testutil.WriteFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		docs = append(docs, string(p))
		return len(p), nil
	}))

	log := ShipLogs(testutil.NewTestLogger(), sink, "warn")
	log.Info("not shipped")
	log.Named("Pipeline").Warnf("queue full: %d", 3)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, docs, 1)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(docs[0]), &doc))
	assert.Equal(t, "queue full: 3", doc["message"])
	assert.Equal(t, "warn", doc["level"])
	assert.Equal(t, "Pipeline", doc["logger"])
}

func TestBuildSink(t *testing.T) {
	b := newBackend(t)

	for _, transport := range []string{config.TransportHTTP, config.TransportElastic} {
		t.Run(transport, func(t *testing.T) {
			w, err := BuildSink(config.SinkConfig{
				Endpoint:  b.URL + "/logs/_doc",
				Username:  "DEMO_USER",
				Password:  "DEMO_PASSWORD",
				Timeout:   writer.DefaultTimeout,
				Transport: transport,
			})
			require.NoError(t, err)
			assert.Equal(t, b.URL+"/logs/_doc", w.Endpoint())

			require.NoError(t, w.WriteAll([]byte(`{"via":"`+transport+`"}`)))
		})
	}

	assert.Equal(t, []string{`{"via":"http"}`, `{"via":"elastic"}`}, b.received())
}

func TestBuildSink_Invalid(t *testing.T) {
	_, err := BuildSink(config.SinkConfig{Endpoint: "", Transport: config.TransportHTTP})
	assert.ErrorIs(t, err, config.ErrNoEndpoint)

	_, err = BuildSink(config.SinkConfig{Endpoint: "http://localhost:9200/logs/_doc", Transport: "grpc"})
	assert.ErrorIs(t, err, config.ErrInvalidTransport)
}

func TestSendCmd_Args(t *testing.T) {
	inTempDir(t)
	b := newBackend(t)

	out, err := execute(t, "", "send",
		"--endpoint", b.URL+"/logs/_doc", "--username", "DEMO_USER", "--password", "DEMO_PASSWORD",
		`{"msg":"hello"}`, `{"msg":"world"}`)
	require.NoError(t, err)

	assert.Contains(t, out, "sent 2 records")
	assert.Equal(t, []string{`{"msg":"hello"}`, `{"msg":"world"}`}, b.received())
	assert.Equal(t, []string{"DEMO_USER", "DEMO_USER"}, b.users)
}

func TestSendCmd_Stdin(t *testing.T) {
	inTempDir(t)
	b := newBackend(t)

	stdin := `{"n":1}` + "\n\n" + string([]byte{0xc3, 0x28}) + "\n" + `{"n":2}` + "\n"
	out, err := execute(t, stdin, "send", "--endpoint", b.URL+"/logs/_doc")
	require.NoError(t, err)

	// The invalid UTF-8 line counts as written but is never posted.
	assert.Contains(t, out, "sent 3 records")
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, b.received())
}

func TestSendCmd_Unreachable(t *testing.T) {
	inTempDir(t)

	out, err := execute(t, "", "send", "--endpoint", "http://"+closedAddr(t)+"/logs/_doc", `{"msg":"lost"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, writer.ErrDeliveryFailed)
	assert.Contains(t, out, "sent 0 records")
}

func TestSendCmd_NoEndpoint(t *testing.T) {
	inTempDir(t)

	_, err := execute(t, "", "send", `{"msg":"x"}`)
	assert.ErrorIs(t, err, config.ErrNoEndpoint)
}

func TestPingCmd(t *testing.T) {
	inTempDir(t)
	b := newBackend(t)

	out, err := execute(t, "", "ping", "--endpoint", b.URL+"/logs/_doc")
	require.NoError(t, err)
	assert.Contains(t, out, `"cluster_name":"test"`)
}

func TestPingCmd_Unreachable(t *testing.T) {
	inTempDir(t)

	_, err := execute(t, "", "ping", "--endpoint", "http://"+closedAddr(t)+"/logs/_doc")
	assert.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
sink:
  endpoint: http://localhost:9200/logs/_doc
  transport: elastic
ingestors:
  stdin:
    enabled: true
  journal:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := execute(t, "", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:9200/logs/_doc (elastic)")
	assert.Contains(t, out, "[journal stdin]")
}

func TestValidateCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sink:\n  endpoint: http://localhost:9200/x\n"), 0644))

	_, err := execute(t, "", "validate", "--config", path)
	assert.ErrorIs(t, err, config.ErrNoIngestors)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "elastic-log-writer dev\n", out)
}

func TestApplyRunOverrides(t *testing.T) {
	cmd := NewRunCmd(new(string), new(string))
	require.NoError(t, cmd.Flags().Parse([]string{
		"--endpoint", "http://es:9200/app/_doc",
		"--transport", "elastic",
		"--stdin",
		"--file", "/var/log/a.log,/var/log/b.log",
	}))

	cfg := &config.Config{Sink: config.SinkConfig{Endpoint: "http://old:9200/x", Username: "keep"}}
	applyRunOverrides(cmd, cfg)

	assert.Equal(t, "http://es:9200/app/_doc", cfg.Sink.Endpoint)
	assert.Equal(t, "keep", cfg.Sink.Username)
	assert.Equal(t, config.TransportElastic, cfg.Sink.Transport)
	assert.True(t, cfg.Ingestors.Stdin.Enabled)
	assert.False(t, cfg.Ingestors.Journal.Enabled)
	assert.True(t, cfg.Ingestors.File.Enabled)
	assert.Equal(t, []string{"/var/log/a.log", "/var/log/b.log"}, cfg.Ingestors.File.Paths)
}

type idleTracker struct {
	testutil.DoerFunc
	closed int
}

func (d *idleTracker) CloseIdleConnections() { d.closed++ }

func TestRunner_ApplyReleasesOldSink(t *testing.T) {
	sinkCfg := config.SinkConfig{
		Endpoint:  "http://old:9200/logs/_doc",
		Timeout:   writer.DefaultTimeout,
		Transport: config.TransportHTTP,
	}
	cfg := &config.Config{
		Sink:      sinkCfg,
		Pipeline:  config.PipelineConfig{BufferedLines: 10, ShutdownTimeout: time.Second},
		Ingestors: config.IngestorConfig{Stdin: config.StdinIngestorConfig{Enabled: true}},
	}

	tracker := &idleTracker{DoerFunc: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("unused")
	}}
	old := writer.New(sinkCfg.Endpoint, "", "", writer.WithHTTPClient(tracker))

	p, err := pipeline.New(cfg, old, testutil.NewTestLogger(), pipeline.WithStdin(strings.NewReader("")))
	require.NoError(t, err)

	r := &runner{
		cmd:      NewRunCmd(new(string), new(string)),
		console:  testutil.NewTestLogger(),
		log:      testutil.NewTestLogger(),
		pipeline: p,
		sink:     old,
		sinkCfg:  sinkCfg,
	}

	// Unchanged sink section: the writer is kept.
	same := *cfg
	r.apply(&same)
	assert.Equal(t, 0, tracker.closed)
	assert.Same(t, old, r.sink)

	changed := *cfg
	changed.Sink.Endpoint = "http://new:9200/logs/_doc"
	r.apply(&changed)

	assert.Equal(t, 1, tracker.closed)
	assert.Equal(t, "http://new:9200/logs/_doc", r.sink.Endpoint())
	assert.Equal(t, changed.Sink, r.sinkCfg)
}
