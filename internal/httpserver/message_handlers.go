package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"uchat/internal/service"
)

type messageSendRequest struct {
	CipherText string            `json:"cipher_text"`
	IV         string            `json:"iv"`
	KeyBundle  map[string]string `json:"key_bundle"`
}

// @Summary      Send an encrypted message
// @Description  Persists the envelope with one wrapped key per recipient and pushes it to live recipients
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        chatID path int true "Chat ID"
// @Param        input body messageSendRequest true "Envelope"
// @Success      201  {object}  map[string]any
// @Failure      403  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /chats/{chatID}/messages [post]
func handleSendMessage(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		var req messageSendRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}

		res, err := msgSvc.SendSecureMessage(r.Context(), service.SendInput{
			ChatID:         chatID,
			SenderID:       currentUser.ID,
			SenderNickname: currentUser.Nickname,
			CipherText:     req.CipherText,
			IV:             req.IV,
			KeyBundle:      req.KeyBundle,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message_id": res.MessageID,
			"sent_at":    res.SentAt,
			"delivered":  res.Delivered,
		})
	}
}

// @Summary      Chat history
// @Description  Messages of a chat readable by the caller, oldest first, each with the caller's wrapped key
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        chatID path int true "Chat ID"
// @Success      200  {object}  map[string][]domain.HistoryEntry
// @Router       /chats/{chatID}/messages [get]
func handleListMessages(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		chatID, err := chatIDParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		entries, err := msgSvc.GetHistory(r.Context(), chatID, currentUser.ID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": entries})
	}
}
