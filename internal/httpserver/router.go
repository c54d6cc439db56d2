package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "uchat/docs"
	"uchat/internal/config"
	"uchat/internal/domain"
	"uchat/internal/metrics"
	"uchat/internal/security"
	"uchat/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Store         Pinger
	Users         domain.UserRepository
	Tokens        *security.TokenService
	Auth          *service.AuthService
	Directory     *service.UserService
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Gateway       http.Handler
	Metrics       *metrics.Recorder
	Logger        *zap.Logger
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(d Deps) http.Handler {
	log := d.Logger.Named("http")
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": d.Config.AppName + " secure messaging API",
			"version": "1.0.0",
			"docs":    "/docs/index.html",
			"ws":      "/ws",
		})
	})

	r.Get("/health", handleHealth(d.Store, log))
	r.Handle("/metrics", d.Metrics.Handler())

	// Swagger documentation
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// Websocket endpoints are long-lived and stay outside the request timeout.
	r.Handle("/ws", d.Gateway)
	r.Handle("/hubs/daemon", d.Gateway)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(d.Auth, log))
			r.Post("/login", handleLogin(d.Auth, log))
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Tokens, d.Users, log))

			r.Get("/auth/me", handleMe())

			r.Route("/users", func(r chi.Router) {
				r.Get("/search", handleSearchUsers(d.Directory, log))
				r.Get("/{nickname}/public-key", handleGetPublicKey(d.Directory, log))
				r.Post("/public-keys", handleGetPublicKeys(d.Directory, log))
			})

			r.Route("/chats", func(r chi.Router) {
				r.Post("/private", handleInitPrivateChat(d.Conversations, log))
				r.Post("/groups", handleCreateGroup(d.Conversations, log))
				r.Get("/{chatID}/participants", handleListParticipants(d.Conversations, log))
				r.Get("/{chatID}/messages", handleListMessages(d.Messages, log))
				r.Post("/{chatID}/messages", handleSendMessage(d.Messages, log))
			})
		})
	})

	return r
}

func handleHealth(store Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// requestLogger writes one zap line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		msg = domain.ErrInternal.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateMail), errors.Is(err, domain.ErrDuplicateNickname),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownRecipient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotMember), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", domain.ErrInvalidInput)
	}
	return nil
}
