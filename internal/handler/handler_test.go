package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/lynxx-backend/internal/config"
	"github.com/shinyyama/lynxx-backend/internal/pricing"
	"github.com/shinyyama/lynxx-backend/internal/realtime"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"github.com/shinyyama/lynxx-backend/internal/service"
	"github.com/shinyyama/lynxx-backend/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	paths []string
	fail  bool
}

func (f *fakeUploader) Upload(_ context.Context, path string, _ []byte, _ string) (string, error) {
	if f.fail {
		return "", errors.New("bucket unreachable")
	}
	f.paths = append(f.paths, path)
	return "https://example.test/" + path, nil
}

type fakeDirectory map[string]string

func (f fakeDirectory) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	name, ok := f[uid]
	if !ok {
		return nil, errors.New("no such user")
	}
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid, DisplayName: name}}, nil
}

type testAPI struct {
	e        *echo.Echo
	wallet   service.WalletService
	reads    service.ReadService
	uploader *fakeUploader
}

func testUID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if uid := c.Request().Header.Get("X-Test-UID"); uid != "" {
			c.Set("uid", uid)
		}
		return next(c)
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testdb.Open(t)
	hub := realtime.NewHub(16)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	notifier := service.NewNotificationService(notifRepo)
	wallet := service.NewWalletService(db, walletRepo)
	convs := service.NewConversationService(convRepo, msgRepo, profileRepo)
	reads := service.NewReadService(convRepo, msgRepo, notifier, hub)
	policy := pricing.NewFixedRate(config.Pricing{TextCredits: 5, ImageCredits: 10, CreditValueCents: 10, CreatorSharePercent: 70})
	messages := service.NewMessageService(db, convRepo, msgRepo, walletRepo, profileRepo, policy, hub, notifier, service.MessageServiceOptions{})
	profiles := service.NewProfileService(profileRepo)
	uploader := &fakeUploader{}

	convH := NewConversationHandler(convs, messages, reads)
	msgH := NewMessageHandler(messages)
	profH := NewProfileHandler(profiles, fakeDirectory{"earner": "Earner From Firebase"})
	walletH := NewWalletHandler(wallet)
	notifH := NewNotificationHandler(notifier)
	uploadH := NewUploadHandler(uploader, 1024)
	rtH := NewRealtimeHandler(hub, convs, reads, func(*http.Request) bool { return true })

	e := echo.New()
	api := e.Group("/api", testUID)
	api.POST("/me/profile", profH.Create)
	api.GET("/users/:uid/public", profH.GetPublic)
	api.GET("/me/wallet", walletH.Get)
	api.GET("/me/wallet/transactions", walletH.ListTransactions)
	api.GET("/conversations", convH.List)
	api.GET("/conversations/:id", convH.Get)
	api.GET("/conversations/:id/messages", convH.ListMessages)
	api.POST("/conversations/:id/read", convH.MarkRead)
	api.GET("/me/unread", convH.UnreadTotal)
	api.POST("/messages", msgH.Send)
	api.POST("/uploads/images", uploadH.UploadImage)
	api.GET("/notifications", notifH.List)
	api.POST("/notifications/read", notifH.MarkAllRead)
	api.GET("/realtime", rtH.Subscribe)

	return &testAPI{e: e, wallet: wallet, reads: reads, uploader: uploader}
}

func (a *testAPI) do(t *testing.T, method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if uid != "" {
		req.Header.Set("X-Test-UID", uid)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) profile(t *testing.T, uid, role string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/me/profile", uid, map[string]string{"role": role})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error.Code
}

func TestSendMessageFlow(t *testing.T) {
	a := newTestAPI(t)
	a.profile(t, "seeker", "seeker")
	a.profile(t, "earner", "earner")
	_, err := a.wallet.Grant(context.Background(), "seeker", 5)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]interface{}{"recipientId": "earner", "content": "hello", "type": "text"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent SendMessageResponse
	decode(t, rec, &sent)
	assert.True(t, sent.ConversationCreated)
	assert.EqualValues(t, 5, sent.Message.CreditsCost)
	assert.Equal(t, "seeker", sent.Message.SenderUID)

	rec = a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]interface{}{"recipientId": "earner", "content": "again"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient_credits", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]interface{}{"recipientId": "earner", "content": strings.Repeat("x", 2001)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message_too_long", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]interface{}{"recipientId": "earner", "content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_message", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/messages", "earner", map[string]interface{}{"recipientId": "seeker", "content": "thanks", "conversationId": sent.ConversationID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/messages", "earner", map[string]interface{}{"recipientId": "seeker", "content": "x", "conversationId": 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/messages", "", map[string]interface{}{"recipientId": "seeker", "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/me/wallet", "earner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var w WalletResponse
	decode(t, rec, &w)
	assert.EqualValues(t, 35, w.AvailableEarningsCents)

	rec = a.do(t, http.MethodGet, "/api/me/wallet/transactions", "seeker", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []WalletTransactionResponse
	decode(t, rec, &txs)
	require.Len(t, txs, 2)
	assert.Equal(t, "message_debit", txs[0].Kind)
	assert.Equal(t, "grant", txs[1].Kind)
}

func TestConversationEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.profile(t, "seeker", "seeker")
	a.profile(t, "earner", "earner")
	a.profile(t, "other", "seeker")
	_, err := a.wallet.Grant(context.Background(), "seeker", 50)
	require.NoError(t, err)

	var convID uint64
	for i := 0; i < 3; i++ {
		rec := a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]interface{}{"recipientId": "earner", "content": "hi"})
		require.Equal(t, http.StatusCreated, rec.Code)
		var sent SendMessageResponse
		decode(t, rec, &sent)
		convID = sent.ConversationID
	}
	id := func(suffix string) string {
		return "/api/conversations/" + strconv.FormatUint(convID, 10) + suffix
	}

	rec := a.do(t, http.MethodGet, "/api/conversations", "earner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox []InboxItemResponse
	decode(t, rec, &inbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, "seeker", inbox[0].OtherUID)
	assert.EqualValues(t, 3, inbox[0].UnreadCount)
	assert.True(t, inbox[0].HasUnread)

	rec = a.do(t, http.MethodGet, id(""), "earner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cv ConversationResponse
	decode(t, rec, &cv)
	assert.EqualValues(t, 3, cv.TotalMessages)
	assert.EqualValues(t, 15, cv.TotalCreditsSpent)

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, id(""), "other", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/conversations/999", "earner", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/conversations/abc", "earner", nil).Code)

	rec = a.do(t, http.MethodGet, id("/messages?limit=2"), "earner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []MessageResponse
	decode(t, rec, &msgs)
	require.Len(t, msgs, 2)
	assert.Less(t, msgs[0].ID, msgs[1].ID)

	rec = a.do(t, http.MethodGet, "/api/me/unread", "earner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unreadCount":3}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, id("/read"), "earner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","marked":3}`, rec.Body.String())
	rec = a.do(t, http.MethodPost, id("/read"), "earner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","marked":0}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/me/unread", "earner", nil)
	assert.JSONEq(t, `{"unreadCount":0}`, rec.Body.String())
}

func TestProfileEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/me/profile", "u", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.profile(t, "earner", "earner")
	rec = a.do(t, http.MethodPost, "/api/me/profile", "earner", map[string]string{"role": "seeker"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/users/earner/public", "someone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pub PublicUserResponse
	decode(t, rec, &pub)
	assert.Equal(t, "earner", pub.Role)
	assert.Equal(t, "Earner From Firebase", pub.DisplayName)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/users/ghost/public", "someone", nil).Code)
}

func TestNotificationEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.profile(t, "seeker", "seeker")
	a.profile(t, "earner", "earner")
	_, err := a.wallet.Grant(context.Background(), "seeker", 5)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]string{"recipientId": "earner", "content": "ping"}).Code)

	var body struct {
		Notifications []NotificationResponse `json:"notifications"`
		UnreadCount   int64                  `json:"unreadCount"`
	}
	require.Eventually(t, func() bool {
		rec := a.do(t, http.MethodGet, "/api/notifications", "earner", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		decode(t, rec, &body)
		return body.UnreadCount == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "seeker", body.Notifications[0].ActorUID)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/notifications/read", "earner", nil).Code)
	rec := a.do(t, http.MethodGet, "/api/notifications", "earner", nil)
	decode(t, rec, &body)
	assert.EqualValues(t, 0, body.UnreadCount)
}

// 1x1 transparent PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func (a *testAPI) upload(t *testing.T, uid string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/uploads/images", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set("X-Test-UID", uid)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func TestUploadImage(t *testing.T) {
	a := newTestAPI(t)

	rec := a.upload(t, "u1", pngBytes)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp UploadResponse
	decode(t, rec, &resp)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.True(t, strings.HasPrefix(resp.Path, "chat-images/u1/"))
	assert.True(t, strings.HasSuffix(resp.Path, ".png"))
	assert.Equal(t, []string{resp.Path}, a.uploader.paths)

	rec = a.upload(t, "u1", []byte("just some text, not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.upload(t, "u1", bytes.Repeat([]byte{0}, 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	a.uploader.fail = true
	rec = a.upload(t, "u1", pngBytes)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRealtimeAutoRead(t *testing.T) {
	a := newTestAPI(t)
	a.profile(t, "seeker", "seeker")
	a.profile(t, "earner", "earner")
	_, err := a.wallet.Grant(context.Background(), "seeker", 50)
	require.NoError(t, err)
	rec := a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]string{"recipientId": "earner", "content": "first"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sent SendMessageResponse
	decode(t, rec, &sent)

	srv := httptest.NewServer(a.e)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime?topic=" + realtime.ConversationTopic(sent.ConversationID)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"X-Test-UID": []string{"intruder"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"X-Test-UID": []string{"earner"}})
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// opening the conversation marks the first message read
	var ev realtime.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.EventMessagesRead, ev.Kind)

	rec = a.do(t, http.MethodPost, "/api/messages", "seeker", map[string]string{"recipientId": "earner", "content": "second"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.EventMessageInserted, ev.Kind)
	assert.Equal(t, "earner", ev.RecipientUID)

	require.Eventually(t, func() bool {
		n, err := a.reads.UnreadTotal(context.Background(), "earner")
		return err == nil && n == 0
	}, 2*time.Second, 20*time.Millisecond)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/realtime?topic=inbox:seeker", http.Header{"X-Test-UID": []string{"earner"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	rec := c.Response().Writer.(*httptest.ResponseRecorder)
	require.NoError(t, writeError(c, errors.New("dial tcp 10.0.0.3:3306: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), genericFailure)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	rec = c.Response().Writer.(*httptest.ResponseRecorder)
	require.NoError(t, writeError(c, service.ErrTransient))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
