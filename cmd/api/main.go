package main

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emandor/crosseval_service/internal/arena"
	"github.com/emandor/crosseval_service/internal/cache"
	"github.com/emandor/crosseval_service/internal/config"
	"github.com/emandor/crosseval_service/internal/metrics"
	"github.com/emandor/crosseval_service/internal/middleware"
	"github.com/emandor/crosseval_service/internal/providers"
	"github.com/emandor/crosseval_service/internal/telemetry"
	"github.com/emandor/crosseval_service/internal/ws"
)

func main() {
	cfg := config.Load()

	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))
	tlog.Info().Str("port", cfg.AppPort).Msg("booting crosseval_service")

	registry := providers.DefaultRegistry()
	if cfg.BackendsFile != "" {
		r, err := providers.LoadRegistry(cfg.BackendsFile)
		if err != nil {
			tlog.Fatal().Err(err).Msg("backends_load_failed")
		}
		registry = r
	}
	if cfg.UpstreamKey == "" {
		tlog.Warn().Msg("UPSTREAM_API_KEY not set; chat requests will fail")
	}

	upstream := providers.NewUpstream(cfg.UpstreamBaseURL, cfg.UpstreamKey, cfg.UpstreamTimeout, cfg.UpstreamRPS, cfg.UpstreamBurst)
	hub := ws.NewHub()

	opts := []arena.Option{
		arena.WithPublisher(hub),
		arena.WithRecorder(metrics.New(prometheus.DefaultRegisterer)),
		arena.RequireCredential("UPSTREAM_API_KEY", cfg.UpstreamKey),
	}
	if cfg.RedisAddr != "" {
		rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)
		opts = append(opts, arena.WithStatusStore(cache.NewStatusStore(rdb, cfg.StatusTTL)))
	}
	svc := arena.NewService(registry, upstream, opts...)

	app := fiber.New(fiber.Config{BodyLimit: cfg.MaxBodyBytes})

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecureHeaders())
	app.Use(middleware.RequestLog())
	app.Use(middleware.RateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := arena.NewHandler(svc)
	api := app.Group("/api/v1")
	api.Post("/chat", h.Chat)
	api.Get("/backends", h.ListBackends)

	app.Get("/ws", ws.Upgrade(), websocket.New(hub.HandleWS))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
