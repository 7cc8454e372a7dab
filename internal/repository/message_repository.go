package repository

import (
	"context"
	"time"

	"github.com/shinyyama/lynxx-backend/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id uint64) (*model.Message, error)
	List(ctx context.Context, convID, beforeID uint64, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, convID uint64, recipientUID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, convID uint64, recipientUID string) (int64, error)
	CountUnreadByConversation(ctx context.Context, recipientUID string) (map[uint64]int64, error)
	CountUnreadTotal(ctx context.Context, recipientUID string) (int64, error)
	WithTx(tx *gorm.DB) MessageRepository
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *messageRepository) WithTx(tx *gorm.DB) MessageRepository {
	return &messageRepository{db: tx}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindByID(ctx context.Context, id uint64) (*model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msg model.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// List returns up to limit messages older than beforeID (0 = newest), oldest first.
func (r *messageRepository) List(ctx context.Context, convID, beforeID uint64, limit int) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).Where("conversation_id = ?", convID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var msgs []model.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkRead sets read_at on unread messages addressed to recipientUID. Already read
// rows keep their original timestamp.
func (r *messageRepository) MarkRead(ctx context.Context, convID uint64, recipientUID string, at time.Time) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ? AND recipient_uid = ? AND read_at IS NULL", convID, recipientUID).
		Update("read_at", at)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, convID uint64, recipientUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ? AND recipient_uid = ? AND read_at IS NULL", convID, recipientUID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *messageRepository) CountUnreadByConversation(ctx context.Context, recipientUID string) (map[uint64]int64, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var rows []struct {
		ConversationID uint64
		Unread         int64
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("recipient_uid = ? AND read_at IS NULL", recipientUID).
		Group("conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		out[row.ConversationID] = row.Unread
	}
	return out, nil
}

func (r *messageRepository) CountUnreadTotal(ctx context.Context, recipientUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("recipient_uid = ? AND read_at IS NULL", recipientUID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
