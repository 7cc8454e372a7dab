package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/pricing"
	"github.com/shinyyama/lynxx-backend/internal/realtime"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"github.com/shinyyama/lynxx-backend/internal/reqctx"
	"gorm.io/gorm"
)

// MaxMessageRunes bounds a text message after trimming.
const MaxMessageRunes = 2000

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Publisher is the realtime side of a send; *realtime.Hub implements it.
type Publisher interface {
	Publish(topic string, ev realtime.Event)
	Hold(key string) (release func())
}

// holdPair keeps writers of one seeker/earner pair from interleaving their
// commit and publish steps.
func holdPair(p Publisher, seekerUID, earnerUID string) func() {
	if p == nil {
		return func() {}
	}
	return p.Hold(seekerUID + "|" + earnerUID)
}

type SendInput struct {
	SenderUID      string
	RecipientUID   string
	Content        string
	ConversationID uint64 // 0 = find or create
	Type           model.MessageType
}

type SendResult struct {
	Message             *model.Message
	ConversationID      uint64
	ConversationCreated bool
}

type MessageService interface {
	Send(ctx context.Context, in SendInput) (*SendResult, error)
	ListMessages(ctx context.Context, convID uint64, viewerUID string, beforeID uint64, limit int) ([]model.Message, error)
}

type MessageServiceOptions struct {
	Timeout time.Duration
}

type messageService struct {
	db          *gorm.DB
	convRepo    repository.ConversationRepository
	msgRepo     repository.MessageRepository
	walletRepo  repository.WalletRepository
	profileRepo repository.ProfileRepository
	policy      pricing.Policy
	publisher   Publisher
	notifier    NotificationService
	timeout     time.Duration
	now         func() time.Time
	background  sync.WaitGroup
}

func NewMessageService(
	db *gorm.DB,
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	walletRepo repository.WalletRepository,
	profileRepo repository.ProfileRepository,
	policy pricing.Policy,
	publisher Publisher,
	notifier NotificationService,
	opts MessageServiceOptions,
) MessageService {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &messageService{
		db:          db,
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		walletRepo:  walletRepo,
		profileRepo: profileRepo,
		policy:      policy,
		publisher:   publisher,
		notifier:    notifier,
		timeout:     opts.Timeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ValidateContent trims text and enforces the length bound. Image content is an
// upload path and only has to be present.
func ValidateContent(t model.MessageType, content string) (string, error) {
	if !t.Valid() {
		return "", ErrInvalidMessageType
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if t == model.MessageTypeText && utf8.RuneCountInString(trimmed) > MaxMessageRunes {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}

// Send is the only path that writes messages. Billing, the message row, the ledger
// and the conversation counters commit together or not at all; realtime events and
// the notification go out only after commit.
func (s *messageService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if in.SenderUID == "" {
		return nil, ErrUnauthorized
	}
	if in.Type == "" {
		in.Type = model.MessageTypeText
	}
	content, err := ValidateContent(in.Type, in.Content)
	if err != nil {
		return nil, err
	}
	if in.RecipientUID == "" || in.RecipientUID == in.SenderUID {
		return nil, ErrUnauthorized
	}
	if s.db == nil {
		return nil, asTransient(repository.ErrDBNotReady)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sender, recipient, err := s.loadParties(ctx, in.SenderUID, in.RecipientUID)
	if err != nil {
		return nil, asTransient(err)
	}
	seekerUID, earnerUID := sender.UID, recipient.UID
	if sender.Role == model.RoleEarner {
		seekerUID, earnerUID = recipient.UID, sender.UID
	}
	quote, err := s.policy.Quote(sender.Role, in.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessageType, err)
	}

	release := holdPair(s.publisher, seekerUID, earnerUID)
	defer release()

	var (
		msg     *model.Message
		cv      *model.Conversation
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convRepo := s.convRepo.WithTx(tx)
		msgRepo := s.msgRepo.WithTx(tx)
		walletRepo := s.walletRepo.WithTx(tx)

		var err error
		cv, created, err = s.resolveConversation(ctx, convRepo, in, seekerUID, earnerUID)
		if err != nil {
			return err
		}

		if err := walletRepo.Debit(ctx, seekerUID, quote.Credits); err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return ErrInsufficientCredits
			}
			return err
		}

		msg = &model.Message{
			ConversationID:    cv.ID,
			SenderUID:         sender.UID,
			RecipientUID:      recipient.UID,
			Content:           content,
			MessageType:       in.Type,
			CreditsCost:       quote.Credits,
			EarnerAmountCents: quote.EarnerCents,
			PlatformFeeCents:  quote.PlatformFeeCents,
			CreatedAt:         s.now(),
		}
		if err := msgRepo.Create(ctx, msg); err != nil {
			return err
		}

		if !quote.Free() {
			if err := settle(ctx, walletRepo, msg, seekerUID, earnerUID); err != nil {
				return fmt.Errorf("%w: %w", ErrLedgerSettlementFailed, err)
			}
		}

		if err := convRepo.TouchOnNewMessage(ctx, cv.ID, quote.Credits, msg.CreatedAt); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		err = asTransient(err)
		lvl := zerolog.InfoLevel
		switch {
		case errors.Is(err, ErrLedgerSettlementFailed):
			lvl = zerolog.ErrorLevel
		case errors.Is(err, ErrTransient):
			lvl = zerolog.WarnLevel
		}
		log.WithLevel(lvl).Err(err).
			Str("rid", reqctx.RID(ctx)).
			Str("sender_uid", in.SenderUID).
			Str("recipient_uid", in.RecipientUID).
			Msg("send message failed")
		return nil, err
	}

	log.Info().
		Str("rid", reqctx.RID(ctx)).
		Uint64("conversation_id", cv.ID).
		Uint64("message_id", msg.ID).
		Int64("credits", quote.Credits).
		Bool("conversation_created", created).
		Msg("message sent")

	s.publishInserted(cv, msg)
	s.notifyRecipient(ctx, cv, msg)

	return &SendResult{Message: msg, ConversationID: cv.ID, ConversationCreated: created}, nil
}

func (s *messageService) ListMessages(ctx context.Context, convID uint64, viewerUID string, beforeID uint64, limit int) ([]model.Message, error) {
	if _, err := loadParticipantConversation(ctx, s.convRepo, convID, viewerUID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.msgRepo.List(ctx, convID, beforeID, limit)
}

// loadParties requires both users to have profiles with opposite roles.
func (s *messageService) loadParties(ctx context.Context, senderUID, recipientUID string) (*model.Profile, *model.Profile, error) {
	profiles, err := s.profileRepo.GetMany(ctx, []string{senderUID, recipientUID})
	if err != nil {
		return nil, nil, err
	}
	sender, ok := profiles[senderUID]
	if !ok {
		return nil, nil, ErrUnauthorized
	}
	recipient, ok := profiles[recipientUID]
	if !ok {
		return nil, nil, ErrUnauthorized
	}
	if !sender.Role.Valid() || !recipient.Role.Valid() || sender.Role == recipient.Role {
		return nil, nil, ErrUnauthorized
	}
	return &sender, &recipient, nil
}

func (s *messageService) resolveConversation(ctx context.Context, repo repository.ConversationRepository, in SendInput, seekerUID, earnerUID string) (*model.Conversation, bool, error) {
	if in.ConversationID == 0 {
		return findOrCreateConversation(ctx, repo, seekerUID, earnerUID)
	}
	cv, err := repo.FindByID(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrConversationNotFound
		}
		return nil, false, err
	}
	if cv.SeekerUID != seekerUID || cv.EarnerUID != earnerUID {
		return nil, false, ErrUnauthorized
	}
	return cv, false, nil
}

func settle(ctx context.Context, walletRepo repository.WalletRepository, msg *model.Message, seekerUID, earnerUID string) error {
	if err := walletRepo.AddEarnings(ctx, earnerUID, msg.EarnerAmountCents); err != nil {
		return err
	}
	return walletRepo.AppendTransactions(ctx,
		&model.WalletTransaction{
			UID:            seekerUID,
			Kind:           model.TxKindMessageDebit,
			Credits:        -msg.CreditsCost,
			MessageID:      uint64Ptr(msg.ID),
			ConversationID: uint64Ptr(msg.ConversationID),
		},
		&model.WalletTransaction{
			UID:            earnerUID,
			Kind:           model.TxKindMessageEarning,
			AmountCents:    msg.EarnerAmountCents,
			MessageID:      uint64Ptr(msg.ID),
			ConversationID: uint64Ptr(msg.ConversationID),
		},
	)
}

func (s *messageService) publishInserted(cv *model.Conversation, msg *model.Message) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(realtime.ConversationTopic(cv.ID), realtime.Event{
		Kind:           realtime.EventMessageInserted,
		ConversationID: cv.ID,
		MessageID:      msg.ID,
		SenderUID:      msg.SenderUID,
		RecipientUID:   msg.RecipientUID,
		At:             msg.CreatedAt,
	})
	for _, uid := range []string{cv.SeekerUID, cv.EarnerUID} {
		s.publisher.Publish(realtime.InboxTopic(uid), realtime.Event{
			Kind:           realtime.EventConversationUpdated,
			ConversationID: cv.ID,
			MessageID:      msg.ID,
			At:             msg.CreatedAt,
		})
	}
}

// notifyRecipient runs after the send under the pair hold, so it cannot interleave
// with a mark-read. A message read in the meantime gets no notification.
func (s *messageService) notifyRecipient(ctx context.Context, cv *model.Conversation, msg *model.Message) {
	if s.notifier == nil {
		return
	}
	body := previewOf(msg)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		release := holdPair(s.publisher, cv.SeekerUID, cv.EarnerUID)
		defer release()
		nctx, cancel := withShortDeadline(ctx)
		defer cancel()
		if cur, err := s.msgRepo.FindByID(nctx, msg.ID); err == nil && cur.ReadAt != nil {
			log.Debug().Str("rid", reqctx.RID(nctx)).Uint64("message_id", msg.ID).Msg("message already read, notification skipped")
			return
		}
		s.notifier.Notify(nctx, msg.RecipientUID, model.NotificationTypeNewMessage, "New message", body, uint64Ptr(msg.ConversationID), msg.SenderUID)
	}()
}

func previewOf(msg *model.Message) string {
	if msg.MessageType == model.MessageTypeImage {
		return "Sent you a photo"
	}
	const max = 80
	if utf8.RuneCountInString(msg.Content) <= max {
		return msg.Content
	}
	r := []rune(msg.Content)
	return string(r[:max]) + "…"
}
