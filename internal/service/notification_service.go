package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"github.com/shinyyama/lynxx-backend/internal/reqctx"
)

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, title, body string, convID *uint64, actorUID string)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userUID string) error
	MarkByConversation(ctx context.Context, userUID string, convID uint64) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, userUID, typ, title, body string, convID *uint64, actorUID string) {
	if userUID == "" || typ == "" {
		return
	}
	n := &model.Notification{
		UserUID:        userUID,
		Type:           typ,
		Title:          title,
		Body:           body,
		ConversationID: convID,
		ActorUID:       actorUID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Warn().Err(err).Str("rid", reqctx.RID(ctx)).Str("user_uid", userUID).Str("type", typ).Msg("notify failed")
	}
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}

func (s *notificationService) MarkByConversation(ctx context.Context, userUID string, convID uint64) error {
	if userUID == "" || convID == 0 {
		return nil
	}
	return s.repo.MarkByConversation(ctx, userUID, convID)
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

// withShortDeadline detaches from the caller's cancellation but keeps its values,
// so a finished request does not abort the side job.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
}
