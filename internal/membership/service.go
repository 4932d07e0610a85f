// Package membership answers every organization-scoped question: who
// belongs to an org, which orgs a user is in, and which tasks an org owns.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hugh/taskhub/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrgNotFound        = errors.New("organization not found")
	ErrMembershipNotFound = errors.New("membership not found")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type AddUserInput struct {
	Name  string
	Email string
	OrgID uint
}

type AddUserResult struct {
	User    *models.User
	Member  *models.OrgMember
	Created bool // a new user row was inserted
}

// AddUserToOrganization reuses the user with the given email or creates
// one, then links it to the organization. Repeating the call for the same
// (email, org) leaves exactly one membership row.
func (s *Service) AddUserToOrganization(ctx context.Context, input AddUserInput) (*AddUserResult, error) {
	name := strings.TrimSpace(input.Name)
	email := input.Email
	if name == "" || strings.TrimSpace(email) == "" {
		return nil, models.ErrMissingFields
	}

	res, err := s.addUser(ctx, name, email, input.OrgID)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent create of the same email; the user
		// now exists, so the second pass takes the reuse branch.
		res, err = s.addUser(ctx, name, email, input.OrgID)
	}
	return res, err
}

func (s *Service) addUser(ctx context.Context, name, email string, orgID uint) (*AddUserResult, error) {
	var result AddUserResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org models.Organization
		if err := tx.Select("id").First(&org, orgID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrgNotFound
			}
			return err
		}

		var user models.User
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				Name:       name,
				Email:      email,
				OrgID:      &org.ID,
				AccessRole: models.RoleMember,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			result.Created = true
		case err != nil:
			return err
		}

		member := models.OrgMember{OrgID: org.ID, UserID: user.ID, Role: models.RoleMember}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&member).Error; err != nil {
			return fmt.Errorf("linking membership: %w", err)
		}

		// On conflict nothing was inserted; load the surviving row.
		if err := tx.Where("org_id = ? AND user_id = ?", org.ID, user.ID).First(&member).Error; err != nil {
			return err
		}

		result.User = &user
		result.Member = &member
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UsersByOrg lists the distinct users holding a membership in orgID.
func (s *Service) UsersByOrg(ctx context.Context, orgID uint) ([]models.User, error) {
	db := s.db.WithContext(ctx)
	members := db.Model(&models.OrgMember{}).Select("user_id").Where("org_id = ?", orgID)

	var users []models.User
	err := db.
		Where("id IN (?)", members).
		Order("id").
		Find(&users).Error
	return users, err
}

func (s *Service) MembersByOrg(ctx context.Context, orgID uint) ([]models.OrgMember, error) {
	var members []models.OrgMember
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).Order("id").Find(&members).Error
	return members, err
}

func (s *Service) MembershipsByUser(ctx context.Context, userID uint) ([]models.OrgMember, error) {
	var members []models.OrgMember
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&members).Error
	return members, err
}

func (s *Service) MembershipByUserAndOrg(ctx context.Context, userID, orgID uint) (*models.OrgMember, error) {
	var member models.OrgMember
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &member, nil
}

// MembershipByID loads a membership by its own id.
func (s *Service) MembershipByID(ctx context.Context, id uint) (*models.OrgMember, error) {
	var member models.OrgMember
	if err := s.db.WithContext(ctx).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (s *Service) OrganizationsByUser(ctx context.Context, userID uint) ([]models.Organization, error) {
	var orgs []models.Organization
	err := s.db.WithContext(ctx).
		Joins("JOIN org_members ON org_members.org_id = organizations.id").
		Where("org_members.user_id = ?", userID).
		Order("organizations.id").
		Find(&orgs).Error
	return orgs, err
}

// TasksByOrg lists tasks whose membership belongs to orgID.
func (s *Service) TasksByOrg(ctx context.Context, orgID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Joins("JOIN org_members ON org_members.id = tasks.org_member_id").
		Where("org_members.org_id = ?", orgID).
		Order("tasks.id").
		Find(&tasks).Error
	return tasks, err
}

func (s *Service) IsMember(ctx context.Context, orgID, userID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.OrgMember{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&n).Error
	return n > 0, err
}

func (s *Service) IsAdmin(ctx context.Context, orgID, userID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.OrgMember{}).
		Where("org_id = ? AND user_id = ? AND role = ?", orgID, userID, models.RoleAdmin).
		Count(&n).Error
	return n > 0, err
}

// SharesOrg reports whether the two users have at least one organization
// in common.
func (s *Service) SharesOrg(ctx context.Context, a, b uint) (bool, error) {
	return s.sharedOrg(ctx, a, b, "")
}

// SharesOrgAsAdmin reports whether adminID administers an organization
// that userID belongs to.
func (s *Service) SharesOrgAsAdmin(ctx context.Context, adminID, userID uint) (bool, error) {
	return s.sharedOrg(ctx, adminID, userID, models.RoleAdmin)
}

func (s *Service) sharedOrg(ctx context.Context, a, b uint, role string) (bool, error) {
	q := s.db.WithContext(ctx).Table("org_members AS a").
		Joins("JOIN org_members AS b ON b.org_id = a.org_id").
		Where("a.user_id = ? AND b.user_id = ?", a, b)
	if role != "" {
		q = q.Where("a.role = ?", role)
	}

	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}
