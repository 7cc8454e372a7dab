package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/lynxx-backend/internal/service"
)

type WalletHandler struct {
	svc service.WalletService
}

func NewWalletHandler(svc service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

type WalletResponse struct {
	CreditBalance          int64 `json:"creditBalance"`
	AvailableEarningsCents int64 `json:"availableEarningsCents"`
}

type WalletTransactionResponse struct {
	ID             uint64  `json:"id"`
	Kind           string  `json:"kind"`
	Credits        int64   `json:"credits"`
	AmountCents    int64   `json:"amountCents"`
	MessageID      *uint64 `json:"messageId,omitempty"`
	ConversationID *uint64 `json:"conversationId,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

func (h *WalletHandler) Get(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	w, err := h.svc.GetBalance(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch wallet"))
	}
	return c.JSON(http.StatusOK, WalletResponse{
		CreditBalance:          w.CreditBalance,
		AvailableEarningsCents: w.AvailableEarningsCents,
	})
}

func (h *WalletHandler) ListTransactions(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	list, err := h.svc.ListTransactions(c.Request().Context(), uid, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch transactions"))
	}
	resp := make([]WalletTransactionResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, WalletTransactionResponse{
			ID:             t.ID,
			Kind:           string(t.Kind),
			Credits:        t.Credits,
			AmountCents:    t.AmountCents,
			MessageID:      t.MessageID,
			ConversationID: t.ConversationID,
			CreatedAt:      t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, resp)
}
