// AngelaMos | 2026
// handler.go

package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/accountd/internal/core"
	"github.com/carterperez-dev/accountd/internal/middleware"
)

const maxBodyBytes = 64 << 10

type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) (int, error)
}

type Handler struct {
	service   *Service
	sessions  SessionRevoker
	validator *validator.Validate
}

func NewHandler(service *Service, sessions SessionRevoker) *Handler {
	return &Handler{
		service:   service,
		sessions:  sessions,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the account administration endpoints. Every route
// requires an authenticated admin.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/", h.CreateUser)
		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
		r.Patch("/{userID}", h.UpdateUser)
		r.Patch("/{userID}/activate", h.ActivateUser)
		r.Delete("/{userID}", h.DeactivateUser)
		r.Post("/{userID}/sessions/revoke", h.RevokeSessions)
	})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToUserResponse(user))
}

// ListUsers accepts page, page_size, search, role and active query
// parameters.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListUsersParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   q.Get("search"),
	}

	if raw := q.Get("role"); raw != "" {
		role, err := core.ParseRole(raw)
		if err != nil {
			core.BadRequest(w, "role must be one of: admin user")
			return
		}
		params.Role = role
	}

	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			core.BadRequest(w, "active must be a boolean")
			return
		}
		params.Active = &active
	}

	params.Normalize()

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToUserResponseList(users),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.SetActive(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "userID"),
		true,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, true)
}

// DeactivateUser disables the account and revokes its refresh tokens.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.SetActive(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "userID"),
		false,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.sessions.RevokeUserSessions(r.Context(), user.ID); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, true)
}

func (h *Handler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := h.sessions.RevokeUserSessions(r.Context(), user.ID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, RevokeSessionsResponse{Revoked: n})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "User")
	case errors.Is(err, core.ErrDuplicateKey):
		core.Conflict(w, "User")
	case errors.Is(err, ErrSelfDeactivation):
		core.Forbidden(w, "cannot deactivate your own account")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
