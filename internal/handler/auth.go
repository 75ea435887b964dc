package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/parking-cession/internal/config"     // app configuration
	"github.com/iliyamo/parking-cession/internal/model"      // domain types
	"github.com/iliyamo/parking-cession/internal/repository" // sentinel errors
	"github.com/iliyamo/parking-cession/internal/service"    // error kinds
	"github.com/iliyamo/parking-cession/internal/utils"      // password check and token issuing
)

// UserFinder looks up accounts for login.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserFinder
	Logger *slog.Logger
}

func NewAuthHandler(cfg config.Config, u UserFinder, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Logger: logger}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64     `json:"id"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	Role     model.Role `json:"role"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

var errBadCredentials = &service.Error{Kind: service.KindUnauthorized, Message: "invalid email or password"}

// Login verifies email/password and returns a signed access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(req.Password)
		return errBadCredentials
	}
	if err != nil {
		h.Logger.Error("login lookup failed", "error", err)
		return &service.Error{Kind: service.KindInternal, Message: service.MsgInternal, Err: err}
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errBadCredentials
	}

	at, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		h.Logger.Error("token signing failed", "user_id", u.ID, "error", err)
		return &service.Error{Kind: service.KindInternal, Message: service.MsgInternal, Err: err}
	}
	h.Logger.Info("user logged in", "user_id", u.ID, "role", u.Role)
	return ok(c, http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role},
		Access: tokenPart{Token: at.Token, Expires: at.Exp},
	})
}

// Me echoes the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	id := identity(c)
	if id.UserID == 0 {
		return &service.Error{Kind: service.KindUnauthorized, Message: "authentication required"}
	}
	return ok(c, http.StatusOK, id)
}
