package membership

import (
	"context"
	"errors"
	"strings"

	"github.com/hugh/taskhub/internal/database/models"
	"gorm.io/gorm"
)

func (s *Service) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser changes a user's name and email.
func (s *Service) UpdateUser(ctx context.Context, id uint, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(email) == "" {
		return nil, models.ErrMissingFields
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":  name,
			"email": email,
		})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return models.ErrDuplicateEmail
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrUserNotFound
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes the user row only. Memberships and the tasks attached
// to them are left in place.
func (s *Service) DeleteUser(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
