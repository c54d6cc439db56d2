package httpserver

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"uchat/internal/domain"
	"uchat/internal/service"
)

type registerRequest struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

// registerResponse carries the private key. It is returned exactly once and
// never stored by the server.
type registerResponse struct {
	User       *domain.User `json:"user"`
	PrivateKey string       `json:"private_key"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

// @Summary      Register a new user
// @Description  Register a new user and return the freshly issued private key
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body registerRequest true "Register input"
// @Success      201  {object}  registerResponse
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /auth/register [post]
func handleRegister(authSvc *service.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}

		reg, err := authSvc.Register(r.Context(), service.RegisterInput{
			Mail:     req.Mail,
			Password: req.Password,
			Nickname: req.Nickname,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, registerResponse{User: reg.User, PrivateKey: reg.PrivateKey})
	}
}

// @Summary      Login
// @Description  Login with mail and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body loginRequest true "Login input"
// @Success      200  {object}  tokenResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /auth/login [post]
func handleLogin(authSvc *service.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}

		sess, err := authSvc.Login(r.Context(), req.Mail, req.Password)
		// An unknown mail answers exactly like a wrong password.
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": domain.ErrInvalidCredentials.Error()})
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: sess.Token,
			TokenType:   "bearer",
			User:        sess.User,
		})
	}
}

// @Summary      Get Current User
// @Description  Get currently logged in user details
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  domain.User
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
