// AngelaMos | 2026
// handler.go

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/accountd/internal/config"
	"github.com/carterperez-dev/accountd/internal/core"
	"github.com/carterperez-dev/accountd/internal/middleware"
)

const maxFormBytes = 16 << 10

type HandlerConfig struct {
	Cookie     config.CookieConfig
	RefreshTTL time.Duration
}

type Handler struct {
	service    *Service
	cookie     config.CookieConfig
	refreshTTL time.Duration
	validator  *validator.Validate
}

func NewHandler(service *Service, cfg HandlerConfig) *Handler {
	return &Handler{
		service:    service,
		cookie:     cfg.Cookie,
		refreshTTL: cfg.RefreshTTL,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/token", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/logout/all", h.LogoutAll)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Get("/sessions", h.GetSessions)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		core.BadRequest(w, "invalid form body")
		return
	}

	form := LoginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	session, err := h.service.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	core.OK(w, toTokenResponse(session))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.LogoutCurrentSession(r.Context(), h.refreshCookie(r))
	h.clearRefreshCookie(w)
	if err != nil {
		WriteError(w, err)
		return
	}

	core.Success(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	err := h.service.LogoutAllSessions(r.Context(), h.refreshCookie(r))
	h.clearRefreshCookie(w)
	if err != nil {
		WriteError(w, err)
		return
	}

	core.Success(w)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Refresh(r.Context(), h.refreshCookie(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	core.OK(w, toTokenResponse(session))
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "")
		return
	}

	core.OK(w, UserResponse{
		UserID:   principal.UserID,
		Name:     principal.Name,
		Role:     principal.Role,
		IsActive: true,
	})
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	sessions, err := h.service.ActiveSessions(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, sessions)
}

func (h *Handler) refreshCookie(r *http.Request) string {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: sameSite(h.cookie.SameSite),
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: sameSite(h.cookie.SameSite),
	})
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// WriteError maps engine and gate errors onto HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.NewAppError(
			err, "Invalid ID or password", http.StatusUnauthorized, "AUTHENTICATION_FAILED",
		))
	case errors.Is(err, ErrMissingToken):
		core.JSONError(w, core.NewAppError(
			err, "Refresh token missing", http.StatusUnauthorized, "MISSING_TOKEN",
		))
	case errors.Is(err, ErrTokenReuse):
		core.JSONError(w, core.NewAppError(
			err, "Invalid refresh token", http.StatusUnauthorized, "TOKEN_REUSE_DETECTED",
		))
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError(""))
	case errors.Is(err, ErrTokenNotFound):
		core.JSONError(w, core.NewAppError(
			err, "Refresh token not found", http.StatusUnauthorized, "TOKEN_NOT_FOUND",
		))
	case errors.Is(err, ErrUserNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, ErrInactiveUser):
		core.JSONError(w, core.NewAppError(
			err, "Inactive user", http.StatusForbidden, "INACTIVE_USER",
		))
	default:
		core.InternalServerError(w, err)
	}
}
