package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"gorm.io/gorm"
)

type ConversationService interface {
	FindConversation(ctx context.Context, userA, userB string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, seekerUID, earnerUID string) (*model.Conversation, error)
	FindOrCreate(ctx context.Context, seekerUID, earnerUID string) (*model.Conversation, error)
	TouchOnNewMessage(ctx context.Context, convID uint64, creditsCost int64) error
	Get(ctx context.Context, convID uint64, viewerUID string) (*model.Conversation, error)
	ListInbox(ctx context.Context, viewerUID string) ([]InboxEntry, error)
}

// InboxEntry is one row of a viewer's conversation list.
type InboxEntry struct {
	Conversation model.Conversation
	OtherUID     string
	Other        *model.Profile
	UnreadCount  int64
}

type conversationService struct {
	convRepo    repository.ConversationRepository
	msgRepo     repository.MessageRepository
	profileRepo repository.ProfileRepository
}

func NewConversationService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, profileRepo repository.ProfileRepository) ConversationService {
	return &conversationService{convRepo: convRepo, msgRepo: msgRepo, profileRepo: profileRepo}
}

// FindConversation returns nil without error when the pair has never talked.
func (s *conversationService) FindConversation(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, nil
	}
	return s.convRepo.FindBetween(ctx, userA, userB)
}

func (s *conversationService) CreateConversation(ctx context.Context, seekerUID, earnerUID string) (*model.Conversation, error) {
	return createConversation(ctx, s.convRepo, seekerUID, earnerUID)
}

func (s *conversationService) FindOrCreate(ctx context.Context, seekerUID, earnerUID string) (*model.Conversation, error) {
	cv, _, err := findOrCreateConversation(ctx, s.convRepo, seekerUID, earnerUID)
	return cv, err
}

func (s *conversationService) TouchOnNewMessage(ctx context.Context, convID uint64, creditsCost int64) error {
	if err := s.convRepo.TouchOnNewMessage(ctx, convID, creditsCost, time.Now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

func (s *conversationService) Get(ctx context.Context, convID uint64, viewerUID string) (*model.Conversation, error) {
	return loadParticipantConversation(ctx, s.convRepo, convID, viewerUID)
}

func (s *conversationService) ListInbox(ctx context.Context, viewerUID string) ([]InboxEntry, error) {
	if viewerUID == "" {
		return nil, ErrUnauthorized
	}
	convs, err := s.convRepo.FindByUser(ctx, viewerUID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []InboxEntry{}, nil
	}
	unread, err := s.msgRepo.CountUnreadByConversation(ctx, viewerUID)
	if err != nil {
		return nil, err
	}
	others := make([]string, 0, len(convs))
	for _, cv := range convs {
		others = append(others, cv.Other(viewerUID))
	}
	profiles, err := s.profileRepo.GetMany(ctx, others)
	if err != nil {
		return nil, err
	}
	resp := make([]InboxEntry, 0, len(convs))
	for _, cv := range convs {
		other := cv.Other(viewerUID)
		e := InboxEntry{Conversation: cv, OtherUID: other, UnreadCount: unread[cv.ID]}
		if p, ok := profiles[other]; ok {
			e.Other = &p
		}
		resp = append(resp, e)
	}
	return resp, nil
}

func createConversation(ctx context.Context, repo repository.ConversationRepository, seekerUID, earnerUID string) (*model.Conversation, error) {
	if seekerUID == "" || earnerUID == "" || seekerUID == earnerUID {
		return nil, ErrUnauthorized
	}
	cv := &model.Conversation{SeekerUID: seekerUID, EarnerUID: earnerUID, PayerUID: seekerUID}
	if err := repo.Create(ctx, cv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateConversation
		}
		return nil, err
	}
	return cv, nil
}

// findOrCreateConversation treats losing the creation race as success and returns
// the winner's row.
func findOrCreateConversation(ctx context.Context, repo repository.ConversationRepository, seekerUID, earnerUID string) (*model.Conversation, bool, error) {
	cv, err := repo.FindBetween(ctx, seekerUID, earnerUID)
	if err != nil {
		return nil, false, err
	}
	if cv != nil {
		return cv, false, nil
	}
	cv, err = createConversation(ctx, repo, seekerUID, earnerUID)
	if err == nil {
		return cv, true, nil
	}
	if !errors.Is(err, ErrDuplicateConversation) {
		return nil, false, err
	}
	cv, err = repo.FindBetweenLocked(ctx, seekerUID, earnerUID)
	if err != nil {
		return nil, false, err
	}
	if cv == nil {
		return nil, false, fmt.Errorf("conversation %s/%s vanished after conflict", seekerUID, earnerUID)
	}
	return cv, false, nil
}

func loadParticipantConversation(ctx context.Context, repo repository.ConversationRepository, convID uint64, viewerUID string) (*model.Conversation, error) {
	if viewerUID == "" {
		return nil, ErrUnauthorized
	}
	cv, err := repo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !cv.HasParticipant(viewerUID) {
		return nil, ErrUnauthorized
	}
	return cv, nil
}
