package zapsink

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/testutil"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/writer"
)

type memSink struct {
	mu   sync.Mutex
	docs [][]byte
}

func (m *memSink) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, append([]byte(nil), p...))
	return len(p), nil
}

func (m *memSink) Sync() error { return nil }

func decode(t *testing.T, doc []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(doc, &out), "document: %s", doc)
	return out
}

func TestCore_DocumentLayout(t *testing.T) {
	sink := &memSink{}
	log := NewLogger(sink, zapcore.InfoLevel).Named("app")

	log.Info("Hello World", zap.String("user", "DEMO_USER"), zap.Int("attempt", 2))

	require.Len(t, sink.docs, 1)
	doc := sink.docs[0]
	assert.NotEqual(t, byte('\n'), doc[len(doc)-1], "no trailing newline")

	fields := decode(t, doc)
	assert.Equal(t, "Hello World", fields["message"])
	assert.Equal(t, "info", fields["level"])
	assert.Equal(t, "app", fields["logger"])
	assert.Equal(t, "DEMO_USER", fields["user"])
	assert.EqualValues(t, 2, fields["attempt"])
	assert.Contains(t, fields["caller"], "core_test.go")
	assert.NotEmpty(t, fields["@timestamp"])
}

func TestCore_LevelFilter(t *testing.T) {
	sink := &memSink{}
	log := NewLogger(sink, zapcore.WarnLevel)

	log.Info("hidden")
	log.Warn("shown")

	require.Len(t, sink.docs, 1)
	assert.Equal(t, "shown", decode(t, sink.docs[0])["message"])
}

func TestCore_WithFields(t *testing.T) {
	sink := &memSink{}
	base := NewLogger(sink, zapcore.DebugLevel)
	child := base.With(zap.String("component", "ingestor"))

	child.Debug("child")
	base.Debug("parent")

	require.Len(t, sink.docs, 2)
	assert.Equal(t, "ingestor", decode(t, sink.docs[0])["component"])
	assert.NotContains(t, decode(t, sink.docs[1]), "component")
}

func TestCore_ThroughWriter(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		ctypes []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		ctypes = append(ctypes, r.Header.Get("Content-Type"))
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	w := writer.New(srv.URL+"/logs/_doc", "DEMO_USER", "DEMO_PASSWORD")
	log := NewLogger(w, zapcore.InfoLevel)

	log.Info("Hello World")
	require.NoError(t, log.Sync())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, "application/json", ctypes[0])
	assert.Equal(t, "Hello World", decode(t, []byte(bodies[0]))["message"])
}

func TestCore_DeliveryErrorReturned(t *testing.T) {
	refused := errors.New("connection refused")
	w := writer.New("http://localhost:9200/logs/_doc", "", "", writer.WithHTTPClient(
		testutil.DoerFunc(func(*http.Request) (*http.Response, error) { return nil, refused }),
	))
	c := NewCore(w, zapcore.InfoLevel)

	err := c.Write(zapcore.Entry{Level: zapcore.InfoLevel, Message: "lost"}, nil)
	assert.ErrorIs(t, err, writer.ErrDeliveryFailed)
	assert.ErrorIs(t, err, refused)
}
