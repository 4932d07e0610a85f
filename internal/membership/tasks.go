package membership

import (
	"context"
	"errors"

	"github.com/hugh/taskhub/internal/database/models"
	"gorm.io/gorm"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskInput struct {
	Name        string
	OrgMemberID uint
	StartDate   string
	EndDate     string
	Description string
}

// TaskWithOrg is a task together with the organization its membership
// belongs to.
type TaskWithOrg struct {
	Task  models.Task
	OrgID uint
}

func (s *Service) CreateTask(ctx context.Context, input TaskInput) (*models.Task, error) {
	task := models.Task{
		Name:        input.Name,
		OrgMemberID: input.OrgMemberID,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Description: input.Description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.OrgMember{}).Where("id = ?", input.OrgMemberID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrMembershipNotFound
		}
		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskByID loads a task and resolves its organization through the
// membership it hangs off.
func (s *Service) TaskByID(ctx context.Context, id uint) (*TaskWithOrg, error) {
	var row struct {
		models.Task
		OrgID uint
	}
	err := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Select("tasks.*, org_members.org_id AS org_id").
		Joins("LEFT JOIN org_members ON org_members.id = tasks.org_member_id").
		Where("tasks.id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &TaskWithOrg{Task: row.Task, OrgID: row.OrgID}, nil
}

// UpdateTask replaces every mutable field of the task.
func (s *Service) UpdateTask(ctx context.Context, id uint, input TaskInput) (*models.Task, error) {
	var task models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.OrgMember{}).Where("id = ?", input.OrgMemberID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrMembershipNotFound
		}

		res := tx.Model(&models.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":          input.Name,
			"org_member_id": input.OrgMemberID,
			"start_date":    input.StartDate,
			"end_date":      input.EndDate,
			"description":   input.Description,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		return tx.First(&task, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Service) DeleteTask(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
