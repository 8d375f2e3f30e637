package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/middleware"
	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/repository"
	"github.com/quickcourt/reservation-core/internal/service"
)

// CachePurger drops cached catalog responses. middleware.ResponseCache
// implements it.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// AccountAdmin is implemented by repository.UserRepo and repository.Memory.
type AccountAdmin interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	ListUsers(ctx context.Context, q model.UserQuery) ([]model.User, error)
	SetActive(ctx context.Context, id uint64, active bool) error
}

// AdminHandler exposes platform moderation endpoints.
type AdminHandler struct {
	Catalog *service.Catalog
	Ledger  *service.Ledger
	Users   AccountAdmin
	Tokens  TokenStore
	Log     *zap.Logger
	// Cache, when set, is purged after catalog changes.
	Cache CachePurger
}

func NewAdminHandler(cat *service.Catalog, ledger *service.Ledger, users AccountAdmin, tokens TokenStore, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Catalog: cat, Ledger: ledger, Users: users, Tokens: tokens, Log: log}
}

type activeReq struct {
	Active *bool `json:"active"`
}

// SetVenueActive handles POST /v1/admin/venues/:id/active {"active": bool}.
// Deactivating a venue also deactivates its courts; existing reservations
// are kept.
func (h *AdminHandler) SetVenueActive(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	var req activeReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return badRequest(c, "active (bool) is required")
	}
	ctx := c.Request().Context()
	if err := h.Catalog.SetVenueActive(ctx, id, *req.Active, actor); err != nil {
		return writeError(c, h.Log, err)
	}
	if h.Cache != nil {
		if err := h.Cache.Purge(context.WithoutCancel(ctx)); err != nil {
			// The toggle is committed; cached reads age out by TTL.
			h.Log.Warn("catalog cache purge failed", zap.Uint64("venue_id", id), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"venue_id": id, "active": *req.Active})
}

// Sweep handles POST /v1/admin/sweep: runs one pass of the lifecycle
// sweeper immediately instead of waiting for the next tick.
func (h *AdminHandler) Sweep(c echo.Context) error {
	res, err := h.Ledger.CompleteElapsed(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"completed": res.Completed, "expired": res.Expired})
}

type adminUserView struct {
	ID            uint64     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          model.Role `json:"role"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListUsers handles GET /v1/admin/users?q=&role=&active=&limit=.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	q := model.UserQuery{Search: c.QueryParam("q")}
	if raw := c.QueryParam("role"); raw != "" {
		role, ok := model.ParseRole(raw)
		if !ok {
			return badRequest(c, "unknown role")
		}
		q.Role = role
	}
	if raw := c.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "active must be true or false")
		}
		q.Active = &active
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, "limit must be a non-negative integer")
		}
		q.Limit = n
	}

	users, err := h.Users.ListUsers(c.Request().Context(), q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	items := make([]adminUserView, 0, len(users))
	for _, u := range users {
		items = append(items, adminUserView{
			ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role,
			Active: u.IsActive, EmailVerified: u.EmailVerified, CreatedAt: u.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// SetUserActive handles POST /v1/admin/users/:id/active {"active": bool}.
// Suspending an account revokes its refresh tokens; access tokens already
// issued stay valid until they expire.
func (h *AdminHandler) SetUserActive(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req activeReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return badRequest(c, "active (bool) is required")
	}
	if id == actor.UserID && !*req.Active {
		return badRequest(c, "admins cannot suspend themselves")
	}

	ctx := c.Request().Context()
	if err := h.Users.SetActive(ctx, id, *req.Active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "user not found"})
		}
		return writeError(c, h.Log, err)
	}
	if !*req.Active {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			return writeError(c, h.Log, err)
		}
	}
	h.Log.Info("account status changed",
		zap.Uint64("user_id", id), zap.Bool("active", *req.Active), zap.Uint64("admin_id", actor.UserID))
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "active": *req.Active})
}
