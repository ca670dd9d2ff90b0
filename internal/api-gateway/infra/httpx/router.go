package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/storefront-core/internal/api-gateway/infra/httpx/middlewares"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

type RouterOptions struct {
	Metrics        *telemetry.Metrics
	SendLimiter    *middlewares.RateLimiter
	AllowedOrigins []string
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.AttachTracingMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.NewCORS(opts.AllowedOrigins).Handler)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/health", handler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/shopify/create-order", handler.CreateOrder)
		r.Get("/orders/{orderNumber}/submission", handler.GetSubmission)

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/subscribe", handler.Subscribe)
			r.Delete("/unregister", handler.Unregister)
			r.Get("/tokens", handler.ListTokens)
			r.Get("/status", handler.PushStatus)
			r.Post("/store-received", handler.StoreReceived)
			r.Get("/history", handler.History)
			r.Get("/user-notifications", handler.UserNotifications)

			r.Group(func(r chi.Router) {
				if opts.SendLimiter != nil {
					r.Use(opts.SendLimiter.Handler)
				}
				r.Post("/send", handler.Send)
				r.Post("/send-to-user", handler.SendToUser)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront-api")
}
