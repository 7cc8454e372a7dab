package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/service"
)

type MessageHandler struct {
	svc service.MessageService
}

func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type SendMessageRequest struct {
	RecipientUID   string `json:"recipientId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	ConversationID uint64 `json:"conversationId"`
}

type SendMessageResponse struct {
	ConversationID      uint64          `json:"conversationId"`
	ConversationCreated bool            `json:"conversationCreated"`
	Message             MessageResponse `json:"message"`
}

// Send uses the authenticated uid as sender; the body cannot choose it.
func (h *MessageHandler) Send(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	res, err := h.svc.Send(c.Request().Context(), service.SendInput{
		SenderUID:      uid,
		RecipientUID:   req.RecipientUID,
		Content:        req.Content,
		ConversationID: req.ConversationID,
		Type:           model.MessageType(req.Type),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, SendMessageResponse{
		ConversationID:      res.ConversationID,
		ConversationCreated: res.ConversationCreated,
		Message:             toMessageResponse(*res.Message),
	})
}
