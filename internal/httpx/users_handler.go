package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/users"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type UsersHandler struct {
	svc *users.Service
	log *zap.Logger
}

func (h *UsersHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.With(auth).Get("/me", h.me)
		r.With(auth).Post("/logout", h.logout)
	})
}

type registerReq struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u, err := h.svc.Register(r.Context(), users.RegisterInput(req))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token     string     `json:"access_token"`
	TokenType string     `json:"token_type"`
	User      users.User `json:"user"`
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResp{Token: token, TokenType: "bearer", User: u})
}

func (h *UsersHandler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := users.IdentityFrom(r.Context())
	u, err := h.svc.GetUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Success: true, Message: "logged out"})
}

// Authenticate resolves the bearer token into a users.Identity on the request
// context and rejects the request otherwise.
func Authenticate(svc *users.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				writeError(w, r, log, apperr.Unauthorized(users.CodeInvalidSession, "authentication is not configured"))
				return
			}
			id, err := svc.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				writeError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(users.WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
