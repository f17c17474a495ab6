package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/emandor/crosseval_service/internal/telemetry"
)

// Upstream talks to a single OpenAI-compatible chat-completions API that
// routes to every registered backend by model id.
type Upstream struct {
	BaseURL, Key string
	Client       *http.Client
	Limiter      *rate.Limiter
}

// NewUpstream builds the client. A zero timeout leaves calls unbounded and
// rps <= 0 disables the outbound limiter.
func NewUpstream(baseURL, key string, timeout time.Duration, rps, burst int) *Upstream {
	u := &Upstream{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Key:     key,
		Client:  &http.Client{Timeout: timeout},
	}
	if rps > 0 {
		if burst <= 0 {
			burst = rps
		}
		u.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return u
}

func (u *Upstream) Complete(ctx context.Context, req ChatRequest) (ChatResult, error) {
	log := telemetry.L().With().Str("backend", req.Model).Logger()

	if u.Limiter != nil {
		if err := u.Limiter.Wait(ctx); err != nil {
			return ChatResult{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	b, err := json.Marshal(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("marshaling request: %w", err)
	}
	log.Debug().Int("body_len", len(b)).Msg("upstream_request")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return ChatResult{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+u.Key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := u.Client.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Msg("upstream_request_failed")
		return ChatResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("reading response: %w", err)
	}
	log.Debug().Int("status_code", resp.StatusCode).Int("body_len", len(raw)).Msg("upstream_response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("status", resp.Status).Msg("upstream_http_error")
		return ChatResult{}, &BackendCallError{Status: resp.StatusCode, Body: string(raw)}
	}

	return ChatResult{
		Status:  resp.StatusCode,
		Raw:     rawJSON(raw),
		Message: firstMessage(raw),
	}, nil
}

// firstMessage returns choices[0].message, or nil when absent or empty.
func firstMessage(raw []byte) *ChoiceMessage {
	var out struct {
		Choices []struct {
			Message *ChoiceMessage `json:"message"`
		} `json:"choices"`
	}
	if json.Unmarshal(raw, &out) != nil || len(out.Choices) == 0 {
		return nil
	}
	m := out.Choices[0].Message
	if m == nil {
		return nil
	}
	c := bytes.TrimSpace(m.Content)
	if len(c) == 0 || bytes.Equal(c, []byte("null")) {
		return nil
	}
	return m
}

// rawJSON keeps a payload embeddable in a JSON response; non-JSON bodies are
// carried as a string.
func rawJSON(b []byte) json.RawMessage {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	s, _ := json.Marshal(string(b))
	return s
}
