package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/pkg/adapters/scripted"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, provider *scripted.Provider) http.Handler {
	t.Helper()
	factory := func(_ context.Context, id string) (*moore.Machine, error) {
		m := moore.New("START", moore.WithProvider(provider), moore.WithTerminalState("END"), moore.WithName("switch"))
		err := m.Register(
			domain.State{ID: "START", Prompt: "off", Transitions: map[string]string{"END": "user says bye"}},
			domain.State{ID: "END", Prompt: "done"},
		)
		return m, err
	}
	mgr := session.NewManager(factory, session.WithIDGenerator(func() string { return "s1" }))
	probe, err := factory(context.Background(), "probe")
	require.NoError(t, err)

	h := NewHandler(mgr,
		WithDefinition(probe.Definition()),
		WithMaxInputSize(64),
		WithMount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		})),
	)
	return h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Conversation(t *testing.T) {
	provider := scripted.New().
		Reply("hello there", "").
		Reply("goodbye", "END")
	h := newTestHandler(t, provider)

	w := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var info session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "s1", info.ID)
	assert.Equal(t, "START", info.State)

	w = do(t, h, http.MethodGet, "/sessions", "")
	assert.JSONEq(t, `{"sessions":["s1"]}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/sessions/s1/turns", `{"input":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res domain.RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "hello there", res.Payload)
	assert.Equal(t, "START", res.State)

	w = do(t, h, http.MethodPost, "/sessions/s1/turns", `{"input":"bye"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Completed)

	w = do(t, h, http.MethodPost, "/sessions/s1/turns", `{"input":"again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.True(t, info.Completed)
	assert.Equal(t, []string{"START", "END"}, info.Path)

	w = do(t, h, http.MethodDelete, "/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_BadRequests(t *testing.T) {
	h := newTestHandler(t, scripted.New().Fail(errors.New("upstream down")))
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions", "").Code)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{`, http.StatusBadRequest},
		{"empty input", `{"input":"  "}`, http.StatusBadRequest},
		{"too large", `{"input":"` + strings.Repeat("a", 65) + `"}`, http.StatusBadRequest},
		{"provider failure", `{"input":"hi"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sessions/s1/turns", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	w := do(t, h, http.MethodPost, "/sessions/nope/turns", `{"input":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Introspection(t *testing.T) {
	h := newTestHandler(t, scripted.New())

	w := do(t, h, http.MethodGet, "/machine", "")
	require.Equal(t, http.StatusOK, w.Code)
	var def moore.Definition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &def))
	assert.Equal(t, "START", def.Initial)
	assert.Equal(t, "END", def.Terminal)
	require.Len(t, def.States, 2)
	assert.Equal(t, "user says bye", def.States[1].Transitions["END"])

	assert.JSONEq(t, `{"status":"ok"}`, do(t, h, http.MethodGet, "/health", "").Body.String())
	assert.Contains(t, do(t, h, http.MethodGet, "/info", "").Body.String(), moore.Version)
	assert.Equal(t, "metrics", do(t, h, http.MethodGet, "/metrics", "").Body.String())
	assert.Equal(t, "*", do(t, h, http.MethodOptions, "/sessions", "").Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_SubscribeEvents(t *testing.T) {
	h := newTestHandler(t, scripted.New().Reply("pong", ""))
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/s1/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := bufio.NewScanner(stream.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	turn, err := http.Post(srv.URL+"/sessions/s1/turns", "application/json", strings.NewReader(`{"input":"ping"}`))
	require.NoError(t, err)
	turn.Body.Close()
	require.Equal(t, http.StatusOK, turn.StatusCode)

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var res domain.RunResult
	require.NoError(t, json.Unmarshal([]byte(data), &res))
	assert.Equal(t, "pong", res.Payload)
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("a")
	assert.Equal(t, 1, sm.Subscribers("a"))

	sm.Broadcast("a", "one")
	sm.Broadcast("b", "ignored")
	assert.Equal(t, "one", <-ch)

	// A full buffer drops instead of blocking.
	for i := 0; i < 20; i++ {
		sm.Broadcast("a", "x")
	}
	assert.Len(t, ch, 10)

	cancel()
	assert.Zero(t, sm.Subscribers("a"))
}
