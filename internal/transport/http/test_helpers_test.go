package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/attachment"
	"github.com/vovakirdan/supportchat-server/internal/bot"
	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/metrics"
	"github.com/vovakirdan/supportchat-server/internal/service/chat"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
)

type configT = config.Config

type testEnv struct {
	ts      *httptest.Server
	handler http.Handler
	hub     *core.Hub
	clock   *clock.Mock
}

// startTestServer wires the full stack on an in-memory store.
func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.WelcomeMessage = false
	cfg.AllowedOrigins = []string{"*"}
	for _, m := range mutate {
		m(&cfg)
	}

	disabledLogger := zerolog.Nop()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))

	hub := core.NewHub(&disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	m := metrics.New()
	m.ObserveHub(hub.ClientCount, func() int { return hub.RoomSize(core.AdminRoom) }, hub.Dropped)

	engine := bot.NewEngine(bot.NewMemorySilenceStore(), bot.WithClock(mock), bot.WithWindow(cfg.SilenceWindow))
	svc := chat.NewService(st, engine, hub, chat.Options{
		Welcome:  cfg.WelcomeMessage,
		Clock:    mock,
		Recorder: m,
		Logger:   &disabledLogger,
	})

	server := NewServer(Deps{
		Chat:    svc,
		Hub:     hub,
		Encoder: attachment.NewEncoder(cfg.MaxUploadBytes),
		Metrics: m,
	}, cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	return &testEnv{ts: ts, handler: server.Handler, hub: hub, clock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func (e *testEnv) createUser(t *testing.T, userID string) {
	t.Helper()

	code, body := e.do(t, http.MethodPost, "/user", map[string]string{"userId": userID, "username": "name " + userID})
	if code != http.StatusOK {
		t.Fatalf("create user: %d %s", code, body)
	}
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return v
}
