package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/pkg/actions"
	httpadapter "github.com/aretw0/colloquy/pkg/adapters/http"
	"github.com/aretw0/colloquy/pkg/adapters/memory"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/dsl"
	"github.com/aretw0/colloquy/pkg/observability"
)

type fixture struct {
	engine  *colloquy.Engine
	streams *httpadapter.StreamManager
	handler http.Handler
	store   *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := dsl.New("greeter")
	greet := b.Intent("Greet", "hello")
	b.State("Init").On(greet).Go("Greeting")
	b.State("Greeting").Say("Nice to meet you")
	model, err := b.Build()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	f := &fixture{
		streams: httpadapter.NewStreamManager(nil),
		store:   memory.NewStore(),
	}
	f.engine, err = colloquy.New(model,
		colloquy.WithActions(actions.NewRegistry(actions.Builtins(io.Discard)...)),
		colloquy.WithStateStore(f.store),
		colloquy.WithLifecycleHooks(observability.Combine(metrics.Hooks(), f.streams.Hooks())),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !f.engine.IsShutdown() {
			_ = f.engine.Shutdown(context.Background())
		}
	})
	f.handler = httpadapter.NewHandler(f.engine,
		httpadapter.WithStreams(f.streams),
		httpadapter.WithGatherer(reg),
	)
	return f
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func (f *fixture) say(t *testing.T, sessionID, input string) {
	t.Helper()
	ctx := context.Background()
	sess, err := f.engine.GetOrCreateSession(ctx, sessionID)
	require.NoError(t, err)
	_, err = f.engine.HandleRawInput(ctx, input, sess)
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	require.NoError(t, f.engine.Shutdown(context.Background()))
	w = f.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInfo(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/info")
	require.Equal(t, http.StatusOK, w.Code)

	var info httpadapter.InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "colloquy", info.App)
	assert.Equal(t, colloquy.Version, info.Version)
	assert.Equal(t, "greeter", info.Model)
	assert.Equal(t, 2, info.States)
	assert.Equal(t, 1, info.Events)
}

func TestGraph(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/graph")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD\n"))
	assert.NotContains(t, w.Body.String(), "classDef current")

	f.say(t, "alice", "hello")
	w = f.get(t, "/graph?session=alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class Greeting current")

	w = f.get(t, "/graph?session=ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), "stored", domain.NewSnapshot("stored", "Greeting")))
	f.say(t, "alice", "hello")

	w := f.get(t, "/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["alice","stored"]`, w.Body.String())

	w = f.get(t, "/sessions/alice")
	require.Equal(t, http.StatusOK, w.Code)
	var snap domain.SessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "alice", snap.ID)
	assert.Equal(t, "Greeting", snap.State)

	w = f.get(t, "/sessions/ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.say(t, "alice", "hello")

	w := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `colloquy_state_visits_total{state="Greeting"} 1`)
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/alice/events?watch=state_enter", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return f.streams.Subscribers("alice") == 1
	}, time.Second, 10*time.Millisecond)

	f.say(t, "alice", "hello")

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	require.NoError(t, scanner.Err())

	assert.Equal(t, "event: ping", lines[0])
	assert.Contains(t, lines, "event: state_enter")
	last := lines[len(lines)-1]
	assert.Contains(t, last, `"state":"Greeting"`)
	assert.Contains(t, last, `"session_id":"alice"`)
}
