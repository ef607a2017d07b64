package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dtroode/mindhealer-server/internal/api/http/response"
	"github.com/dtroode/mindhealer-server/internal/apierror"
	"github.com/dtroode/mindhealer-server/internal/logger"
	"github.com/dtroode/mindhealer-server/internal/model"
	"github.com/dtroode/mindhealer-server/internal/service"
)

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

type Auth struct {
	authService    *service.Auth
	tokenService   *service.TokenService
	contextManager model.ContextManager
	cookie         CookieConfig
	logger         *logger.Logger
}

func NewAuth(
	authService *service.Auth,
	tokenService *service.TokenService,
	contextManager model.ContextManager,
	cookie CookieConfig,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		authService:    authService,
		tokenService:   tokenService,
		contextManager: contextManager,
		cookie:         cookie,
		logger:         logger,
	}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileResponse struct {
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
	Age      *int   `json:"age"`
	Location string `json:"location"`
}

type userResponse struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Profile   profileResponse `json:"profile"`
	CreatedAt time.Time       `json:"createdAt"`
}

type signupResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type loginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newUserResponse(u model.User) userResponse {
	return userResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
		Profile: profileResponse{
			Bio:      u.Profile.Bio,
			Avatar:   u.Profile.Avatar,
			Age:      u.Profile.Age,
			Location: u.Profile.Location,
		},
		CreatedAt: u.CreatedAt,
	}
}

func (h *Auth) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	user, err := h.authService.Signup(r.Context(), service.SignupParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, signupResponse{
		Message: "user registered successfully",
		User:    newUserResponse(user),
	})
}

func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	res, err := h.authService.Login(r.Context(), service.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	h.setRefreshCookie(w, res.Credentials.RefreshToken, h.cookie.MaxAge)

	response.JSON(w, http.StatusOK, loginResponse{
		AccessToken: res.Credentials.AccessToken,
		User:        newUserResponse(res.User),
	})
}

func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	access, err := h.tokenService.Refresh(r.Context(), h.refreshCookie(r))
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), h.refreshCookie(r)); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	h.setRefreshCookie(w, "", -1)

	response.JSON(w, http.StatusOK, messageResponse{Message: "logged out successfully"})
}

func (h *Auth) User(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, h.logger, apierror.NewMissingToken())
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Auth) refreshCookie(r *http.Request) string {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// setRefreshCookie writes the refresh cookie; a negative maxAge deletes it.
func (h *Auth) setRefreshCookie(w http.ResponseWriter, value string, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	http.SetCookie(w, c)
}

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return apierror.NewValidation("request body required", nil)
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apierror.NewValidation("request body too large", err)
		}
		return apierror.NewValidation("invalid request body", err)
	}
	return nil
}
