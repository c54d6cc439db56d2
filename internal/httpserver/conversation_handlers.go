package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"uchat/internal/domain"
	"uchat/internal/service"
)

type privateChatRequest struct {
	TargetNickname string `json:"target_nickname"`
}

type groupCreateRequest struct {
	GroupName    string   `json:"group_name"`
	Participants []string `json:"participants"`
}

func chatIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid chat id: %w", domain.ErrInvalidInput)
	}
	return id, nil
}

// @Summary      Open a private chat
// @Description  Returns the chat between the caller and the target, creating it on first contact
// @Tags         chats
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body privateChatRequest true "Target"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]string
// @Router       /chats/private [post]
func handleInitPrivateChat(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		var req privateChatRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		pc, err := convSvc.ResolveOrCreatePrivateChat(r.Context(), currentUser.ID, req.TargetNickname)
		if err != nil {
			writeError(w, log, err)
			return
		}
		status := http.StatusOK
		if pc.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{
			"chat_id":         pc.ChatID,
			"target_nickname": pc.Peer,
			"created":         pc.Created,
		})
	}
}

// @Summary      Create a group
// @Tags         chats
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body groupCreateRequest true "Group"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]string
// @Router       /chats/groups [post]
func handleCreateGroup(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		var req groupCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		g, err := convSvc.CreateGroup(r.Context(), currentUser.Nickname, req.GroupName, req.Participants)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"chat_id":      g.ChatID,
			"group_name":   g.Name,
			"participants": g.Participants,
			"skipped":      g.Skipped,
		})
	}
}

// @Summary      List chat participants
// @Tags         chats
// @Security     BearerAuth
// @Produce      json
// @Param        chatID path int true "Chat ID"
// @Success      200  {object}  map[string][]string
// @Router       /chats/{chatID}/participants [get]
func handleListParticipants(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		parts, err := convSvc.ListParticipants(r.Context(), chatID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"participants": parts})
	}
}
