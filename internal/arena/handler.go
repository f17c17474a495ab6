package arena

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/crosseval_service/internal/middleware"
	"github.com/emandor/crosseval_service/internal/providers"
	"github.com/emandor/crosseval_service/internal/telemetry"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Chat handles POST /api/v1/chat.
func (h *Handler) Chat(c *fiber.Ctx) error {
	rid, _ := c.Locals(middleware.ReqIDKey).(string)
	log := telemetry.L().With().Str("req_id", rid).Logger()

	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		log.Warn().Err(err).Msg("chat_body_invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	ctx := WithTurnID(c.UserContext(), rid)
	resp, err := h.svc.Run(ctx, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

func writeError(c *fiber.Ctx, err error) error {
	log := telemetry.L().With().Err(err).Logger()

	var (
		cfgErr *ConfigurationError
		rve    *RequestValidationError
		failed *AllBackendsFailedError
	)
	switch {
	case errors.As(err, &cfgErr):
		log.Error().Msg("chat_configuration_error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &rve), errors.Is(err, ErrNoBackendsSelected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &failed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "all selected backends failed",
			"details": failed.Statuses,
		})
	default:
		log.Error().Msg("chat_internal_error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

type backendView struct {
	providers.Backend
	LastStatus *providers.BackendStatus `json:"lastStatus,omitempty"`
}

// ListBackends handles GET /api/v1/backends.
func (h *Handler) ListBackends(c *fiber.Ctx) error {
	all := h.svc.Registry().All()

	var last map[string]providers.BackendStatus
	if st := h.svc.StatusStore(); st != nil {
		ids := make([]string, len(all))
		for i, b := range all {
			ids[i] = b.ID
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		var err error
		if last, err = st.Load(ctx, ids); err != nil {
			log := telemetry.L()
			log.Warn().Err(err).Msg("status_load_failed")
		}
	}

	out := make([]backendView, len(all))
	for i, b := range all {
		out[i] = backendView{Backend: b}
		if s, ok := last[b.ID]; ok {
			out[i].LastStatus = &s
		}
	}
	return c.JSON(fiber.Map{"backends": out})
}
