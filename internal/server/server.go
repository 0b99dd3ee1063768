package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/handler"
	"github.com/dukerupert/giftlist/internal/middleware"
	"github.com/dukerupert/giftlist/internal/store"
	ws "github.com/dukerupert/giftlist/internal/websocket"
)

type Config struct {
	Mailer         handler.Mailer
	Granter        *auth.Granter
	AllowedOrigins []string
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	groupH         *handler.GroupHandler
	listH          *handler.ListHandler
	itemH          *handler.ItemHandler
	inviteH        *handler.InviteHandler
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	loginCodeStore *store.LoginCodeStore
	granter        *auth.Granter
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	loginCodeStore := store.NewLoginCodeStore(db)
	groupStore := store.NewGroupStore(db)
	inviteStore := store.NewInviteStore(db)
	listStore := store.NewListStore(db)
	itemStore := store.NewItemStore(db)
	commentStore := store.NewCommentStore(db)

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, sessionStore, loginCodeStore, cfg.Mailer, logger.With("component", "auth")),
		groupH:         handler.NewGroupHandler(groupStore, cfg.Granter, hub, cfg.AllowedOrigins, logger.With("component", "group")),
		listH:          handler.NewListHandler(groupStore, listStore, itemStore, hub, logger.With("component", "list")),
		itemH:          handler.NewItemHandler(groupStore, listStore, itemStore, commentStore, hub, logger.With("component", "item")),
		inviteH:        handler.NewInviteHandler(groupStore, inviteStore, cfg.Mailer, hub, logger.With("component", "invite")),
		userStore:      userStore,
		sessionStore:   sessionStore,
		loginCodeStore: loginCodeStore,
		granter:        cfg.Granter,
		rateLimiter:    middleware.NewRateLimiter(),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// LoginCodeStore returns the login code store for cleanup tasks.
func (s *Server) LoginCodeStore() *store.LoginCodeStore {
	return s.loginCodeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Public auth routes
	mux.HandleFunc("POST /auth/login", s.rateLimited("login", 5, s.authH.Login))
	mux.HandleFunc("POST /auth/verify", s.rateLimited("verify", 10, s.authH.Verify))
	mux.HandleFunc("POST /auth/logout", s.authH.Logout)
	mux.HandleFunc("POST /api/groups/{id}/auth", s.rateLimited("group_auth", 10, s.groupH.Unlock))

	// Session routes
	mux.Handle("GET /api/me", s.session(s.authH.Me))
	mux.Handle("PATCH /api/me", s.session(s.authH.UpdateMe))
	mux.Handle("GET /api/groups", s.session(s.groupH.List))
	mux.Handle("POST /api/groups", s.session(s.groupH.Create))
	mux.Handle("DELETE /api/groups/{id}", s.session(s.groupH.Delete))
	mux.Handle("PUT /api/groups/{id}/password", s.session(s.groupH.SetPassword))
	mux.Handle("GET /api/groups/{id}/members", s.session(s.groupH.Members))
	mux.Handle("POST /api/groups/{id}/invites", s.session(s.inviteH.Create))
	mux.Handle("GET /api/groups/{id}/invites", s.session(s.inviteH.List))
	mux.Handle("GET /api/invites/{token}", s.session(s.inviteH.Lookup))
	mux.Handle("POST /api/invites/{id}/accept", s.session(s.inviteH.Accept))

	// Group routes: session membership or group password
	mux.HandleFunc("GET /api/groups/{id}", s.groupH.Get)
	mux.HandleFunc("GET /api/groups/{id}/ws", s.groupH.WebSocket)

	mux.HandleFunc("GET /api/groups/{id}/lists", s.listH.List)
	mux.HandleFunc("POST /api/groups/{id}/lists", s.listH.Create)
	mux.HandleFunc("PATCH /api/groups/{id}/lists", s.listH.Reorder)
	mux.HandleFunc("GET /api/groups/{id}/lists/{listId}", s.listH.Get)
	mux.HandleFunc("PATCH /api/groups/{id}/lists/{listId}", s.listH.Update)
	mux.HandleFunc("DELETE /api/groups/{id}/lists/{listId}", s.listH.Delete)

	mux.HandleFunc("GET /api/groups/{id}/lists/{listId}/items", s.itemH.List)
	mux.HandleFunc("POST /api/groups/{id}/lists/{listId}/items", s.itemH.Create)
	mux.HandleFunc("PATCH /api/groups/{id}/lists/{listId}/items/{itemId}", s.itemH.Update)
	mux.HandleFunc("DELETE /api/groups/{id}/lists/{listId}/items/{itemId}", s.itemH.Delete)
	mux.HandleFunc("POST /api/groups/{id}/lists/{listId}/items/{itemId}/toggle", s.itemH.Toggle)

	mux.HandleFunc("GET /api/groups/{id}/lists/{listId}/items/{itemId}/comments", s.itemH.ListComments)
	mux.HandleFunc("POST /api/groups/{id}/lists/{listId}/items/{itemId}/comments", s.itemH.CreateComment)
	mux.HandleFunc("DELETE /api/groups/{id}/lists/{listId}/items/{itemId}/comments/{commentId}", s.itemH.DeleteComment)

	var h http.Handler = mux
	h = middleware.LoadAuth(s.sessionStore, s.userStore, s.granter, s.logger.With("component", "auth"))(h)
	h = middleware.CORS(s.allowedOrigins)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

func (s *Server) session(h http.HandlerFunc) http.Handler {
	return middleware.RequireSession(h)
}

func (s *Server) rateLimited(route string, limit int, h http.HandlerFunc) http.HandlerFunc {
	rule := middleware.Rule{Name: route, Limit: limit, Window: time.Minute}
	rl := middleware.RateLimit(s.rateLimiter, rule, middleware.RealIP)
	return rl(h).ServeHTTP
}
