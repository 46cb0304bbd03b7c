package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-board/backend/internal/handler/admin"
	"github.com/zhouzirui/z-board/backend/internal/handler/feed"
	messageHandler "github.com/zhouzirui/z-board/backend/internal/handler/message"
	"github.com/zhouzirui/z-board/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-board/backend/internal/middleware"
	messageService "github.com/zhouzirui/z-board/backend/internal/service/message"
	"github.com/zhouzirui/z-board/backend/pkg/utils"
)

// Options 汇总路由需要的依赖与开关
type Options struct {
	Service         *messageService.Service
	Feed            feed.Subscriber
	Snapshots       admin.Snapshotter
	Limiter         *middlewarePkg.RateLimiter
	Metrics         http.Handler
	Logger          *slog.Logger
	AllowedOrigins  []string
	PrincipalHeader string
	DefaultPageSize uint32
	MaxPageSize     uint32
	Heartbeat       time.Duration
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.Principal(opts.PrincipalHeader))
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	messages := messageHandler.New(opts.Service, opts.DefaultPageSize, opts.MaxPageSize)
	admins := admin.New(opts.Snapshots, opts.Logger)

	r.Route("/api", func(api chi.Router) {
		messages.RegisterRoutes(api, opts.Limiter)
		admins.RegisterRoutes(api)

		if opts.Feed != nil {
			feed.NewWebSocketHandler(opts.Feed, opts.Logger).RegisterRoutes(api)
			stream.New(opts.Feed, opts.Heartbeat, opts.Logger).RegisterRoutes(api)
		}
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"messages": opts.Service.Len(),
		})
	})

	return r
}
