package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/dukerupert/giftlist/internal/apperr"
	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
)

const (
	maxCodeAttempts = 5
	sessionMaxAge   = 90 * 24 * 60 * 60
)

type AuthHandler struct {
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	loginCodeStore *store.LoginCodeStore
	mailer         Mailer
	logger         *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	lcs *store.LoginCodeStore,
	mailer Mailer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:      us,
		sessionStore:   ss,
		loginCodeStore: lcs,
		mailer:         mailer,
		logger:         logger,
	}
}

func parseEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", apperr.Validation("invalid email")
	}
	return store.NormalizeEmail(addr.Address), nil
}

// Login sends a sign-in code. The response is the same whether or not the
// address belongs to an existing user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	emailAddr, err := parseEmail(req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lc, err := h.loginCodeStore.Create(emailAddr)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to create sign-in code", err))
		return
	}
	if err := h.mailer.SendLoginCode(r.Context(), emailAddr, lc.Code); err != nil {
		h.logger.Error("send login code", "email", emailAddr, "error", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

// validateCode checks code against the latest pending code for emailAddr,
// counting failed attempts.
func (h *AuthHandler) validateCode(emailAddr, code string) (*model.LoginCode, error) {
	latest, err := h.loginCodeStore.GetLatestByEmail(emailAddr)
	if err != nil {
		return nil, apperr.Store("failed to check code", err)
	}
	if latest == nil {
		return nil, apperr.Unauthorized("code has expired or already been used, request a new one")
	}

	if latest.Attempts >= maxCodeAttempts {
		h.retireCode(latest.ID)
		return nil, apperr.Unauthorized("too many incorrect attempts, request a new code")
	}

	if subtle.ConstantTimeCompare([]byte(latest.Code), []byte(code)) != 1 {
		attempts, err := h.loginCodeStore.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.retireCode(latest.ID)
			return nil, apperr.Unauthorized("too many incorrect attempts, request a new code")
		}
		return nil, apperr.Unauthorized("incorrect code")
	}

	if err := h.loginCodeStore.MarkUsed(latest.ID); err != nil {
		return nil, apperr.Store("failed to check code", err)
	}
	return latest, nil
}

// retireCode marks a code used after too many wrong attempts. The caller is
// rejected either way, so a failure is only logged.
func (h *AuthHandler) retireCode(id int64) {
	if err := h.loginCodeStore.MarkUsed(id); err != nil {
		h.logger.Error("retire login code", "code_id", id, "error", err)
	}
}

// Verify exchanges a sign-in code for a session, creating the user on first
// sign-in.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	emailAddr, err := parseEmail(req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(w, r, h.logger, apperr.Validation("code is required"))
		return
	}

	if _, err := h.validateCode(emailAddr, code); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.userStore.GetOrCreate(emailAddr)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load user", err))
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to create session", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	h.logger.Info("user signed in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok && ac.SessionID != 0 {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	for _, name := range []string{auth.SessionCookie, auth.GrantCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load user", err))
		return
	}
	if user == nil {
		writeError(w, r, h.logger, apperr.Unauthorized("sign in required"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe changes the current user's display name.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if len(name) > 100 {
		writeError(w, r, h.logger, apperr.Validation("name is too long"))
		return
	}

	user, err := h.userStore.UpdateName(auth.UserID(r.Context()), name)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to update user", err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
