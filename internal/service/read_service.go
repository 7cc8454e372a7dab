package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/realtime"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"github.com/shinyyama/lynxx-backend/internal/reqctx"
)

type ReadService interface {
	// MarkConversationRead is idempotent and reports how many messages changed.
	MarkConversationRead(ctx context.Context, convID uint64, viewerUID string) (int64, error)
	UnreadCount(ctx context.Context, convID uint64, viewerUID string) (int64, error)
	UnreadTotal(ctx context.Context, viewerUID string) (int64, error)
}

type readService struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	notifier  NotificationService
	publisher Publisher
	now       func() time.Time
}

func NewReadService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, notifier NotificationService, publisher Publisher) ReadService {
	return &readService{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		notifier:  notifier,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *readService) MarkConversationRead(ctx context.Context, convID uint64, viewerUID string) (int64, error) {
	cv, err := loadParticipantConversation(ctx, s.convRepo, convID, viewerUID)
	if err != nil {
		return 0, err
	}
	release := holdPair(s.publisher, cv.SeekerUID, cv.EarnerUID)
	defer release()
	at := s.now()
	n, err := s.msgRepo.MarkRead(ctx, convID, viewerUID, at)
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		if err := s.notifier.MarkByConversation(ctx, viewerUID, convID); err != nil {
			log.Warn().Err(err).Str("rid", reqctx.RID(ctx)).Uint64("conversation_id", convID).Msg("mark notifications read failed")
		}
	}
	if n > 0 && s.publisher != nil {
		s.publisher.Publish(realtime.ConversationTopic(convID), realtime.Event{
			Kind:           realtime.EventMessagesRead,
			ConversationID: convID,
			RecipientUID:   viewerUID,
			At:             at,
		})
		for _, uid := range []string{viewerUID, cv.Other(viewerUID)} {
			s.publisher.Publish(realtime.InboxTopic(uid), realtime.Event{
				Kind:           realtime.EventConversationUpdated,
				ConversationID: convID,
				At:             at,
			})
		}
	}
	return n, nil
}

func (s *readService) UnreadCount(ctx context.Context, convID uint64, viewerUID string) (int64, error) {
	if _, err := loadParticipantConversation(ctx, s.convRepo, convID, viewerUID); err != nil {
		return 0, err
	}
	return s.msgRepo.CountUnread(ctx, convID, viewerUID)
}

func (s *readService) UnreadTotal(ctx context.Context, viewerUID string) (int64, error) {
	if viewerUID == "" {
		return 0, ErrUnauthorized
	}
	return s.msgRepo.CountUnreadTotal(ctx, viewerUID)
}
