package repository

import (
	"context"

	"github.com/shinyyama/lynxx-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *model.Profile) error
	Get(ctx context.Context, uid string) (*model.Profile, error)
	GetMany(ctx context.Context, uids []string) (map[string]model.Profile, error)
	SetDB(db *gorm.DB)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, p *model.Profile) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *profileRepository) Get(ctx context.Context, uid string) (*model.Profile, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) GetMany(ctx context.Context, uids []string) (map[string]model.Profile, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[string]model.Profile, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var list []model.Profile
	if err := r.db.WithContext(ctx).Where("uid IN ?", uids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.UID] = p
	}
	return out, nil
}

func (r *profileRepository) SetDB(db *gorm.DB) {
	r.db = db
}
