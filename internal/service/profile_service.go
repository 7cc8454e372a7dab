package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"gorm.io/gorm"
)

const maxDisplayNameRunes = 50

type ProfileService interface {
	Get(ctx context.Context, uid string) (*model.Profile, error)
	Create(ctx context.Context, uid string, role model.Role, displayName string, photoURL *string) (*model.Profile, error)
}

type profileService struct {
	repo repository.ProfileRepository
}

func NewProfileService(repo repository.ProfileRepository) ProfileService {
	return &profileService{repo: repo}
}

func (s *profileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	p, err := s.repo.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Create sets the caller's role once. Re-creating with the same role returns the
// existing profile; a different role is ErrProfileExists.
func (s *profileService) Create(ctx context.Context, uid string, role model.Role, displayName string, photoURL *string) (*model.Profile, error) {
	if uid == "" {
		return nil, ErrUnauthorized
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameRunes {
		displayName = string([]rune(displayName)[:maxDisplayNameRunes])
	}
	p := &model.Profile{UID: uid, Role: role, DisplayName: displayName, PhotoURL: photoURL}
	err := s.repo.Create(ctx, p)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if existing.Role != role {
		return existing, ErrProfileExists
	}
	return existing, nil
}
