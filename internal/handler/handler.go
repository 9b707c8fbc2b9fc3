package handler

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"neurocare-api/internal/middleware"
	"neurocare-api/internal/model"
	"neurocare-api/internal/service"
)

type Deps struct {
	Accounts       *service.Accounts
	Booking        *service.Booking
	Classification *service.Classification
	Connect        *service.Connect
	Chat           *service.Chat

	// Health serves /healthz when set.
	Health http.Handler

	Secret      string
	CORSOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxy  bool
	Limiter     *middleware.RateLimiter
	Log         *zap.Logger
}

type Handler struct {
	accounts       *service.Accounts
	booking        *service.Booking
	classification *service.Classification
	connect        *service.Connect
	chat           *service.Chat

	deps     Deps
	validate *validator.Validate
	log      *zap.Logger
}

func New(d Deps) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{
		accounts:       d.Accounts,
		booking:        d.Booking,
		classification: d.Classification,
		connect:        d.Connect,
		chat:           d.Chat,
		deps:           d,
		validate:       v,
		log:            d.Log,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if h.deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(h.log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.TokenHeader},
		AllowCredentials: true,
	}))

	if h.deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", h.deps.Health)
	}

	limited := func(next http.Handler) http.Handler { return next }
	if h.deps.Limiter != nil {
		limited = middleware.RateLimit(h.deps.Limiter)
	}
	authed := middleware.Auth(h.deps.Secret)

	r.Route("/api", func(api chi.Router) {
		api.Route("/users", func(u chi.Router) {
			u.With(limited).Post("/signup", h.Signup)
			u.With(limited).Post("/signin", h.Signin)
			u.Get("/counselors", h.ListCounselors)
			u.Get("/counselors/{id}", h.GetCounselor)
		})

		api.Route("/appointments", func(a chi.Router) {
			a.Get("/counselor/{counselorUserId}/slots", h.ListSlots)
			a.Group(func(p chi.Router) {
				p.Use(authed)
				p.Post("/addslot", h.AddSlot)
				p.Post("/book", h.Book)
				p.Get("/user", h.ListUserAppointments)
				p.Patch("/cancel/{appointmentId}", h.Cancel)
			})
		})

		api.Route("/chats", func(c chi.Router) {
			c.Use(authed)
			c.Get("/allchats", h.ListConversations)
			c.Post("/conversations", h.StartConversation)
			c.Get("/conversations/{id}/messages", h.ListMessages)
			c.With(limited).Post("/conversations/{id}/messages", h.SendMessage)
			c.With(limited).Post("/messages/classify", h.Classify)
			c.Get("/messages/category-stats", h.CategoryStats)
			c.With(middleware.RequireRole(model.RoleAdmin)).Get("/messages/other", h.PendingMessages)
		})

		api.Route("/connect", func(c chi.Router) {
			c.Use(authed)
			c.With(limited).Post("/submit", h.SubmitConnect)
		})
	})

	return r
}
