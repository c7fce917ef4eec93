// internal/app/features/auth/handler.go
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/app/system/normalize"
	"github.com/intorehq/intorehub/internal/app/system/ratelimit"
	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves registration and login.
type Handler struct {
	Users    *userstore.Store
	Sessions *auth.SessionManager
	Issuer   *auth.Issuer
	Limiter  *ratelimit.LoginLimiter
	Audit    *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs an auth Handler.
func NewHandler(users *userstore.Store, sessions *auth.SessionManager, issuer *auth.Issuer, limiter *ratelimit.LoginLimiter, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    users,
		Sessions: sessions,
		Issuer:   issuer,
		Limiter:  limiter,
		Audit:    auditLog,
		ErrLog:   errLog,
		Log:      logger,
	}
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:       u.ID.Hex(),
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
}

// ServeRegister handles POST /auth/register. Self-registered accounts start
// with the public role; membership is granted separately.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []string
	if strings.TrimSpace(req.FullName) == "" {
		errs = append(errs, "full_name is required")
	}
	if normalize.Email(req.Email) == "" {
		errs = append(errs, "email is required")
	}
	if len(req.Password) < 8 {
		errs = append(errs, "password must be at least 8 characters")
	}
	if len(errs) > 0 {
		respond.Invalid(w, "Validation failed", errs)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to hash password")
		return
	}

	user, err := h.Users.Create(r.Context(), models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         models.RolePublic,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			respond.Conflict(w, "An account with this email already exists")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to create user")
		return
	}

	h.Audit.Log(r.Context(), audit.Record{
		Action:       audit.ActionRegister,
		ResourceType: "user",
		ResourceID:   &user.ID,
		PerformedBy:  &user.ID,
		Severity:     audit.SeverityInfo,
		Metadata:     map[string]string{"email": user.Email},
		IP:           ratelimit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})

	respond.Created(w, "Account created", toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// ServeLogin handles POST /auth/login. Attempts are rate limited per IP and
// per account, and every outcome is audited.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalize.Email(req.Email)

	if ok, reason := h.Limiter.Check(r, email); !ok {
		h.Audit.LoginFailed(r.Context(), r, email, "rate limited")
		respond.Fail(w, http.StatusTooManyRequests, reason)
		return
	}

	user, err := h.Users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Audit.LoginFailed(r.Context(), r, email, "unknown account")
			respond.Fail(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load user for login")
		return
	}

	if user.Status != models.StatusActive {
		h.Audit.LoginFailed(r.Context(), r, email, "account disabled")
		respond.Fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.Audit.LoginFailed(r.Context(), r, email, "wrong password")
		respond.Fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.Issuer.Issue(*user)
	if err != nil {
		h.ErrLog.Internal(w, r, err, "failed to issue token")
		return
	}

	principal := auth.Principal{
		ID:    user.ID.Hex(),
		Name:  user.FullName,
		Email: user.Email,
		Role:  user.Role,
	}
	if user.IntoreGroupID != nil {
		principal.IntoreGroupID = user.IntoreGroupID.Hex()
	}
	if err := h.Sessions.SignIn(w, r, principal); err != nil {
		h.Log.Warn("failed to write session cookie", zap.Error(err))
	}

	h.Limiter.ResetAccount(email)
	h.Audit.LoginSuccess(r.Context(), r, user.ID, user.Email)

	respond.OK(w, "Signed in", loginResponse{Token: token, User: toUserResponse(*user)})
}

// ServeLogout handles POST /auth/logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentUser(r)
	if err := h.Sessions.SignOut(w, r); err != nil {
		h.Log.Warn("failed to clear session cookie", zap.Error(err))
	}

	if p != nil {
		if id, err := primitive.ObjectIDFromHex(p.ID); err == nil {
			h.Audit.Log(r.Context(), audit.Record{
				Action:       audit.ActionLogout,
				ResourceType: "user",
				ResourceID:   &id,
				PerformedBy:  &id,
				Severity:     audit.SeverityInfo,
				IP:           ratelimit.ClientIP(r),
				UserAgent:    r.UserAgent(),
			})
		}
	}

	respond.OK(w, "Signed out", nil)
}

// ServeMe handles GET /auth/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		respond.Fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	user, err := h.Users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.NotFound(w, "Account not found")
			return
		}
		h.ErrLog.Internal(w, r, err, "failed to load current user")
		return
	}

	respond.OK(w, "", user)
}
