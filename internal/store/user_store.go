package store

import (
	"context"

	"vaultauth/internal/domain"

	"gorm.io/gorm"
)

// Users and organization memberships are owned by the account and
// organization subsystems; this module only ever reads them.

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB} }

func (u *UserStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var usr domain.User
	if err := u.db.WithContext(ctx).First(&usr, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &usr, nil
}

type OrgStore struct{ db *gorm.DB }

func (s *Store) Organizations() *OrgStore { return &OrgStore{db: s.DB} }

func (o *OrgStore) ListByUser(ctx context.Context, userID string) ([]domain.UserOrganization, error) {
	var memberships []domain.UserOrganization
	if err := o.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}
