package arena

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/crosseval_service/internal/middleware"
	"github.com/emandor/crosseval_service/internal/providers"
)

type memStatusStore struct {
	saved map[string]providers.BackendStatus
}

func (m *memStatusStore) Save(_ context.Context, st map[string]providers.BackendStatus) error {
	if m.saved == nil {
		m.saved = map[string]providers.BackendStatus{}
	}
	for k, v := range st {
		m.saved[k] = v
	}
	return nil
}

func (m *memStatusStore) Load(_ context.Context, ids []string) (map[string]providers.BackendStatus, error) {
	out := map[string]providers.BackendStatus{}
	for _, id := range ids {
		if v, ok := m.saved[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func newTestApp(svc *Service) *fiber.App {
	app := fiber.New()
	app.Use(middleware.RequestID())
	h := NewHandler(svc)
	app.Post("/api/v1/chat", h.Chat)
	app.Get("/api/v1/backends", h.ListBackends)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "turn-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

const chatBody = `{"messages":[{"role":"user","content":"What is 6*7?"}],"activeBackends":["A","B","C"]}`

func TestChatEndToEnd(t *testing.T) {
	up := newScripted().
		answer("A", "42").
		answer("B", "42, because 6*7=42").
		answerErr("C", &providers.BackendCallError{Status: 429, Body: "slow"}).
		vote("A", verdict("B", "B shows work")).
		vote("B", verdict("A", "A is right"))
	events := &eventLog{}
	store := &memStatusStore{}
	svc := NewService(testRegistry(), up, WithPublisher(events), WithStatusStore(store), RequireCredential("UPSTREAM_API_KEY", "k"))

	status, body := doJSON(t, newTestApp(svc), "POST", "/api/v1/chat", chatBody)
	require.Equal(t, fiber.StatusOK, status)

	assert.JSONEq(t, `[
		{"model":"A","message":{"content":"42"}},
		{"model":"B","message":{"content":"42, because 6*7=42"}}
	]`, string(body["choices"]))
	assert.JSONEq(t, `{
		"A":{"ok":true,"status":200},
		"B":{"ok":true,"status":200},
		"C":{"ok":false,"status":429,"body":"slow"}
	}`, string(body["modelStatuses"]))
	assert.NotEqual(t, "null", string(body["alphaRaw"]))
	assert.NotEqual(t, "null", string(body["betaRaw"]))
	assert.Equal(t, "null", string(body["gammaRaw"]))

	var eval EvaluationResult
	require.NoError(t, json.Unmarshal(body["evaluation"], &eval))
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, eval.Scores)
	require.NotNil(t, eval.WinnerBackendID)
	assert.Equal(t, "A", *eval.WinnerBackendID)
	assert.Equal(t, 0, *eval.WinnerIndex)
	assert.Len(t, eval.Judges, 2)

	assert.Equal(t, 429, store.saved["C"].Status)
	assert.Equal(t, 1, events.kinds()[EventCompleted])
	for _, e := range events.events {
		assert.Equal(t, "turn-1", e.turn)
	}
}

func TestChatSingleAnswerSkipsEvaluation(t *testing.T) {
	up := newScripted().answer("A", "only me")
	svc := NewService(testRegistry(), up)

	status, body := doJSON(t, newTestApp(svc), "POST", "/api/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}],"activeBackends":["A"]}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "null", string(body["evaluation"]))
	assert.Empty(t, up.judgeCalls())
}

func TestChatDefaultsToAllBackends(t *testing.T) {
	up := newScripted().answer("A", "a").answer("B", "b").answer("C", "c").
		vote("A", verdict("C", "")).vote("B", verdict("C", "")).vote("C", verdict("A", ""))
	svc := NewService(testRegistry(), up)

	status, body := doJSON(t, newTestApp(svc), "POST", "/api/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, up.answerCalls(), 3)

	var eval EvaluationResult
	require.NoError(t, json.Unmarshal(body["evaluation"], &eval))
	assert.Equal(t, "C", *eval.WinnerBackendID)
	assert.Equal(t, 2, *eval.WinnerIndex)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid json",
			body:       `{"messages":`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "missing messages",
			body:       `{}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "empty messages",
			body:       `{"messages":[]}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "bad role",
			body:       `{"messages":[{"role":"robot","content":"x"}]}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "empty selection",
			body:       `{"messages":[{"role":"user","content":"x"}],"activeBackends":[]}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "no backends selected",
		},
		{
			name:       "unknown selection",
			body:       `{"messages":[{"role":"user","content":"x"}],"activeBackends":["Z"]}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "no backends selected",
		},
		{
			name:       "missing credential",
			opts:       []Option{RequireCredential("UPSTREAM_API_KEY", "")},
			body:       chatBody,
			wantStatus: fiber.StatusInternalServerError,
			wantError:  "UPSTREAM_API_KEY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newScripted()
			svc := NewService(testRegistry(), up, tt.opts...)

			status, body := doJSON(t, newTestApp(svc), "POST", "/api/v1/chat", tt.body)
			assert.Equal(t, tt.wantStatus, status)

			var msg string
			require.NoError(t, json.Unmarshal(body["error"], &msg))
			assert.Contains(t, msg, tt.wantError)
			assert.Empty(t, up.calls)
		})
	}
}

func TestChatAllBackendsFailed(t *testing.T) {
	up := newScripted().
		answerErr("A", &providers.BackendCallError{Status: 401, Body: "bad key"}).
		answerErr("B", errors.New("timeout"))
	metrics := &metricLog{}
	svc := NewService(testRegistry(), up, WithRecorder(metrics))

	status, body := doJSON(t, newTestApp(svc), "POST", "/api/v1/chat",
		`{"messages":[{"role":"user","content":"x"}],"activeBackends":["A","B"]}`)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.JSONEq(t, `"all selected backends failed"`, string(body["error"]))
	assert.JSONEq(t, `{
		"A":{"ok":false,"status":401,"body":"bad key"},
		"B":{"ok":false,"status":0,"body":"timeout"}
	}`, string(body["details"]))
	assert.Equal(t, []string{"all_failed"}, metrics.turns)
	assert.Empty(t, up.judgeCalls())
}

func TestListBackends(t *testing.T) {
	store := &memStatusStore{saved: map[string]providers.BackendStatus{"B": {OK: true, Status: 200}}}
	svc := NewService(testRegistry(), newScripted(), WithStatusStore(store))

	status, body := doJSON(t, newTestApp(svc), "GET", "/api/v1/backends", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[
		{"id":"A","label":"alpha","supportsReasoning":true},
		{"id":"B","label":"beta","supportsReasoning":false,"lastStatus":{"ok":true,"status":200}},
		{"id":"C","label":"gamma","supportsReasoning":true}
	]`, string(body["backends"]))
}
