// internal/app/features/accounts/handler.go
package accounts

import (
	"errors"
	"net/http"

	userstore "github.com/dalemusser/blockhub/internal/app/store/users"
	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/dalemusser/blockhub/internal/app/system/ratelimit"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves account registration, login, and profile management.
type Handler struct {
	Users  *userstore.Store
	Logins *ratelimit.LoginLimiter
	Log    *zap.Logger
}

func NewHandler(users *userstore.Store, log *zap.Logger) *Handler {
	return &Handler{
		Users:  users,
		Logins: ratelimit.NewLoginLimiter(),
		Log:    log,
	}
}

// accountResponse is the owner's view of their account; it carries the
// email, unlike the public profile shared with other users.
type accountResponse struct {
	models.PublicUser
	Email string `json:"email"`
}

func account(u models.User) accountResponse {
	return accountResponse{PublicUser: u.Public(), Email: u.Email}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleRegister creates an account and signs the new user in.
// POST /accounts/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	u, err := h.Users.Create(r.Context(), userstore.NewUser{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, userstore.ErrDuplicateUsername), errors.Is(err, userstore.ErrDuplicateEmail):
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
		default:
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		}
		return
	}
	if err := auth.SignIn(w, r, u.ID, u.Username); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, account(u))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and opens a session.
// POST /accounts/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if allowed, reason := h.Logins.Check(r, req.Username); !allowed {
		httpjson.Write(w, http.StatusTooManyRequests, map[string]string{"error": reason})
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, userstore.ErrBadCredentials) {
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Unauthorized, "invalid username or password"))
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	h.Logins.ResetUsername(u.Username)
	if err := auth.SignIn(w, r, u.ID, u.Username); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, account(u))
}

// HandleLogout ends the session.
// POST /accounts/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := auth.SignOut(w, r); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeMe returns the signed-in user's account.
// GET /accounts/me
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpjson.Unauthorized(w)
		return
	}
	u, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, account(u))
}

type profileUpdateRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleUpdateMe updates the signed-in user's profile fields.
// PUT /accounts/me
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpjson.Unauthorized(w)
		return
	}
	var req profileUpdateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	err := h.Users.UpdateProfile(r.Context(), uid, userstore.ProfileUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	u, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, account(u))
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword verifies the current password before rehashing.
// PUT /accounts/me/password
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		httpjson.Unauthorized(w)
		return
	}
	var req passwordChangeRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if _, err := h.Users.Authenticate(r.Context(), user.Username, req.CurrentPassword); err != nil {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Forbidden, "current password is incorrect"))
		return
	}
	uid, _ := auth.CurrentUserID(r)
	if err := h.Users.UpdatePassword(r.Context(), uid, req.NewPassword); err != nil {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
