package ipc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/glint/pkg/apphost"
	"github.com/odvcencio/glint/pkg/bus"
	"github.com/odvcencio/glint/pkg/config"
	apperrors "github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/telemetry"
)

func newTestServer(t *testing.T, cfg config.IPCConfig, b Broadcaster, opts ...Option) (*MockContexts, http.Handler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	contexts := NewMockContexts(ctrl)
	if cfg.BroadcastRPS == 0 {
		cfg.BroadcastRPS = 100
	}
	return contexts, NewServer(cfg, contexts, b, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestServer_Healthz(t *testing.T) {
	contexts, h := newTestServer(t, config.IPCConfig{}, nil)
	contexts.EXPECT().Contexts().Return([]apphost.Info{{ID: "a"}, {ID: "b"}})

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["contexts"])
}

func TestServer_ListContexts(t *testing.T) {
	contexts, h := newTestServer(t, config.IPCConfig{}, nil)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	contexts.EXPECT().Contexts().Return([]apphost.Info{
		{ID: "c1", Module: "clock", Meta: apphost.Meta{Title: "Clock"}, Started: started},
	})

	rec := do(t, h, http.MethodGet, "/contexts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Contexts []apphost.Info `json:"contexts"`
	}](t, rec)
	require.Len(t, body.Contexts, 1)
	assert.Equal(t, "clock", body.Contexts[0].Module)
	assert.Equal(t, "Clock", body.Contexts[0].Meta.Title)
	assert.True(t, started.Equal(body.Contexts[0].Started))
}

func TestServer_LoadContext(t *testing.T) {
	contexts, h := newTestServer(t, config.IPCConfig{}, nil)
	contexts.EXPECT().Load(gomock.Any(), "clock", "24h", []string{"--seconds"}).Return("c1", nil)

	rec := do(t, h, http.MethodPost, "/contexts", `{"ref":" clock ","arg":"24h","args":["--seconds"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, map[string]string{"id": "c1"}, decode[map[string]string](t, rec))
}

func TestServer_LoadContextErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no application", apperrors.New(apperrors.ErrCodeNoApplication, "no app"), http.StatusUnprocessableEntity, "NO_APPLICATION"},
		{"not found", apperrors.New(apperrors.ErrCodeModuleNotFound, "missing"), http.StatusNotFound, "MODULE_NOT_FOUND"},
		{"limit", apperrors.New(apperrors.ErrCodeContextLimit, "full"), http.StatusTooManyRequests, "CONTEXT_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contexts, h := newTestServer(t, config.IPCConfig{}, nil)
			contexts.EXPECT().Load(gomock.Any(), "x", "", nil).Return("", tt.err)

			rec := do(t, h, http.MethodPost, "/contexts", `{"ref":"x"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Code)
		})
	}

	_, h := newTestServer(t, config.IPCConfig{}, nil)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/contexts", `{"ref":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/contexts", `{not json`).Code)
}

func TestServer_TerminateContext(t *testing.T) {
	contexts, h := newTestServer(t, config.IPCConfig{}, nil)
	gomock.InOrder(
		contexts.EXPECT().Terminate("c1").Return(nil),
		contexts.EXPECT().Terminate("c1").Return(apperrors.New(apperrors.ErrCodeContextNotFound, "gone")),
	)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/contexts/c1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/contexts/c1", "").Code)
}

func TestServer_ContextChangesGoThroughExecutor(t *testing.T) {
	queued := make(chan func(), 1)
	contexts, h := newTestServer(t, config.IPCConfig{}, nil, WithExecutor(func(fn func()) { queued <- fn }))
	contexts.EXPECT().Terminate("c1").Return(nil)

	done := make(chan int, 1)
	go func() { done <- do(t, h, http.MethodDelete, "/contexts/c1", "").Code }()

	fn := <-queued
	select {
	case <-done:
		t.Fatal("request finished before the executor ran")
	default:
	}
	fn()
	assert.Equal(t, http.StatusNoContent, <-done)
}

func TestServer_Broadcast(t *testing.T) {
	b := bus.New()
	defer b.Close()
	var got []bus.Message
	_, err := b.Register("clock", func(m bus.Message) { got = append(got, m) })
	require.NoError(t, err)

	_, h := newTestServer(t, config.IPCConfig{}, b)
	rec := do(t, h, http.MethodPost, "/broadcast", `{"topic":"time.set","args":["12:00",1]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"delivered": 1}, decode[map[string]int](t, rec))

	require.Len(t, got, 1)
	assert.Equal(t, DefaultSender, got[0].Sender)
	assert.Equal(t, []any{"12:00", float64(1)}, got[0].Args)

	rec = do(t, h, http.MethodPost, "/broadcast", `{"sender":"clock","topic":"time.set"}`)
	assert.Equal(t, map[string]int{"delivered": 0}, decode[map[string]int](t, rec), "the sender is skipped")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/broadcast", `{"topic":" "}`).Code)
}

func TestServer_BroadcastRateLimited(t *testing.T) {
	b := bus.New()
	defer b.Close()
	_, h := newTestServer(t, config.IPCConfig{BroadcastRPS: 0.001}, b)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/broadcast", `{"topic":"a"}`).Code)
	rec := do(t, h, http.MethodPost, "/broadcast", `{"topic":"a"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestServer_BroadcastWithoutBus(t *testing.T) {
	_, h := newTestServer(t, config.IPCConfig{}, nil)
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodPost, "/broadcast", `{"topic":"a"}`).Code)
}

func TestServer_Metrics(t *testing.T) {
	m := telemetry.NewMetrics(nil)
	m.BusDelivered()
	_, h := newTestServer(t, config.IPCConfig{}, nil, WithMetrics(m))

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "glint_")
}

func TestServer_RecoversHandlerPanics(t *testing.T) {
	contexts, h := newTestServer(t, config.IPCConfig{}, nil)
	contexts.EXPECT().Contexts().DoAndReturn(func() []apphost.Info { panic("broken host") })

	rec := do(t, h, http.MethodGet, "/contexts", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "HANDLER_FAULT", decode[errorResponse](t, rec).Code)
}
