package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"uchat/internal/service"
)

type publicKeysRequest struct {
	Nicknames []string `json:"nicknames"`
}

// @Summary      Search users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        q query string true "Nickname fragment"
// @Success      200  {object}  map[string][]string
// @Router       /users/search [get]
func handleSearchUsers(userSvc *service.UserService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := userSvc.SearchUsers(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"nicknames": names})
	}
}

// @Summary      Get a user's public key
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        nickname path string true "Nickname"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/{nickname}/public-key [get]
func handleGetPublicKey(userSvc *service.UserService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nickname := chi.URLParam(r, "nickname")
		key, ok, err := userSvc.LookupPublicKey(r.Context(), nickname)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"nickname": nickname, "public_key": service.PublicKeyNotFound})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"nickname": nickname, "public_key": key})
	}
}

// @Summary      Get public keys of several users
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body publicKeysRequest true "Nicknames"
// @Success      200  {object}  map[string]map[string]string
// @Router       /users/public-keys [post]
func handleGetPublicKeys(userSvc *service.UserService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req publicKeysRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		keys, err := userSvc.LookupPublicKeys(r.Context(), req.Nicknames)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
	}
}
