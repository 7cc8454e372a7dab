package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/lynxx-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepository interface {
	Create(ctx context.Context, cv *model.Conversation) error
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindBetween(ctx context.Context, userA, userB string) (*model.Conversation, error)
	FindBetweenLocked(ctx context.Context, userA, userB string) (*model.Conversation, error)
	FindByUser(ctx context.Context, uid string) ([]model.Conversation, error)
	TouchOnNewMessage(ctx context.Context, id uint64, creditsCost int64, at time.Time) error
	WithTx(tx *gorm.DB) ConversationRepository
	SetDB(db *gorm.DB)
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *conversationRepository) WithTx(tx *gorm.DB) ConversationRepository {
	return &conversationRepository{db: tx}
}

// Create inserts cv, returning ErrDuplicate when the pair already has a conversation.
func (r *conversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(cv)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := r.db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

// FindBetween matches either participant ordering. Absence is (nil, nil).
func (r *conversationRepository) FindBetween(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	return r.findBetween(r.db, ctx, userA, userB)
}

// FindBetweenLocked reads the latest committed row, used after losing a create race
// inside a transaction whose snapshot predates the winner.
func (r *conversationRepository) FindBetweenLocked(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	return r.findBetween(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), ctx, userA, userB)
}

func (r *conversationRepository) findBetween(q *gorm.DB, ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if q == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	err := q.WithContext(ctx).
		Where("(seeker_uid = ? AND earner_uid = ?) OR (seeker_uid = ? AND earner_uid = ?)", userA, userB, userB, userA).
		First(&cv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByUser(ctx context.Context, uid string) ([]model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Conversation
	if err := r.db.WithContext(ctx).
		Where("seeker_uid = ? OR earner_uid = ?", uid, uid).
		Order("last_message_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *conversationRepository) TouchOnNewMessage(ctx context.Context, id uint64, creditsCost int64, at time.Time) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_messages":      gorm.Expr("total_messages + ?", 1),
			"total_credits_spent": gorm.Expr("total_credits_spent + ?", creditsCost),
			"last_message_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
