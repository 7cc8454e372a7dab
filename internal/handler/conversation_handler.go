package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/service"
)

type ConversationHandler struct {
	convs    service.ConversationService
	messages service.MessageService
	reads    service.ReadService
}

func NewConversationHandler(convs service.ConversationService, messages service.MessageService, reads service.ReadService) *ConversationHandler {
	return &ConversationHandler{convs: convs, messages: messages, reads: reads}
}

type ConversationResponse struct {
	ConversationID    uint64  `json:"conversationId"`
	SeekerUID         string  `json:"seekerUid"`
	EarnerUID         string  `json:"earnerUid"`
	PayerUID          string  `json:"payerUid"`
	TotalMessages     int64   `json:"totalMessages"`
	TotalCreditsSpent int64   `json:"totalCreditsSpent"`
	LastMessageAt     *string `json:"lastMessageAt,omitempty"`
	CreatedAt         string  `json:"createdAt"`
}

type InboxItemResponse struct {
	ConversationResponse
	OtherUID         string  `json:"otherUid"`
	OtherDisplayName string  `json:"otherDisplayName,omitempty"`
	OtherPhotoURL    *string `json:"otherPhotoUrl,omitempty"`
	UnreadCount      int64   `json:"unreadCount"`
	HasUnread        bool    `json:"hasUnread"`
}

type MessageResponse struct {
	ID             uint64  `json:"id"`
	ConversationID uint64  `json:"conversationId"`
	SenderUID      string  `json:"senderUid"`
	RecipientUID   string  `json:"recipientUid"`
	Content        string  `json:"content"`
	MessageType    string  `json:"messageType"`
	CreditsCost    int64   `json:"creditsCost"`
	ReadAt         *string `json:"readAt,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toConversationResponse(cv model.Conversation) ConversationResponse {
	return ConversationResponse{
		ConversationID:    cv.ID,
		SeekerUID:         cv.SeekerUID,
		EarnerUID:         cv.EarnerUID,
		PayerUID:          cv.PayerUID,
		TotalMessages:     cv.TotalMessages,
		TotalCreditsSpent: cv.TotalCreditsSpent,
		LastMessageAt:     formatTime(cv.LastMessageAt),
		CreatedAt:         cv.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toMessageResponse(m model.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderUID:      m.SenderUID,
		RecipientUID:   m.RecipientUID,
		Content:        m.Content,
		MessageType:    string(m.MessageType),
		CreditsCost:    m.CreditsCost,
		ReadAt:         formatTime(m.ReadAt),
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ConversationHandler) List(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	inbox, err := h.convs.ListInbox(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]InboxItemResponse, 0, len(inbox))
	for _, e := range inbox {
		item := InboxItemResponse{
			ConversationResponse: toConversationResponse(e.Conversation),
			OtherUID:             e.OtherUID,
			UnreadCount:          e.UnreadCount,
			HasUnread:            e.UnreadCount > 0,
		}
		if e.Other != nil {
			item.OtherDisplayName = e.Other.DisplayName
			item.OtherPhotoURL = e.Other.PhotoURL
		}
		resp = append(resp, item)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) Get(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	convID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	cv, err := h.convs.Get(c.Request().Context(), convID, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toConversationResponse(*cv))
}

// ListMessages returns a page oldest first; pass before=<id> to page backwards.
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	convID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	var before uint64
	if s := c.QueryParam("before"); s != "" {
		if before, err = strconv.ParseUint(s, 10, 64); err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid before"))
		}
	}
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	msgs, err := h.messages.ListMessages(c.Request().Context(), convID, uid, before, limit)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	convID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	n, err := h.reads.MarkConversationRead(c.Request().Context(), convID, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "marked": n})
}

func (h *ConversationHandler) UnreadTotal(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	total, err := h.reads.UnreadTotal(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"unreadCount": total})
}
