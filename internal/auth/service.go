package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hugh/taskhub/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidOTP        = errors.New("invalid OTP")
	ErrOTPExpired        = errors.New("OTP expired")
	ErrEmailNotFound     = errors.New("email not found")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrPasswordRequired  = errors.New("password is required")
	ErrOTPThrottled      = errors.New("too many OTP requests")
)

// DefaultOTPTTL is how long a signup code stays valid.
const DefaultOTPTTL = 2 * time.Minute

type Service struct {
	db         *gorm.DB
	jwt        *JWTService
	log        *slog.Logger
	now        func() time.Time
	otpTTL     time.Duration
	limiter    IssueLimiter
	dispatcher CodeDispatcher
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func WithLimiter(l IssueLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithDispatcher(d CodeDispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(db *gorm.DB, jwt *JWTService, opts ...Option) *Service {
	s := &Service{
		db:     db,
		jwt:    jwt,
		log:    slog.Default(),
		now:    time.Now,
		otpTTL: DefaultOTPTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SignupInput struct {
	Name  string
	Email string
}

type SignupResult struct {
	UserID uint
	OrgID  uint
	Code   string
}

type VerifyOTPInput struct {
	UserID   uint
	Code     string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token string
	User  *models.User
}

// Signup provisions an organization, its first admin and a one-time code
// in a single transaction. The returned code is also handed to the
// dispatcher, if any; a dispatch failure does not fail the signup.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	name := strings.TrimSpace(input.Name)
	email := input.Email
	if name == "" || strings.TrimSpace(email) == "" {
		return nil, models.ErrMissingFields
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, email); err != nil {
			return nil, err
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var result SignupResult

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return models.ErrDuplicateEmail
		}

		org := models.Organization{
			Base: models.Base{CreatedAt: now, UpdatedAt: now},
			Name: fmt.Sprintf("%s's Organization", name),
		}
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("creating organization: %w", err)
		}

		user := models.User{
			Base:       models.Base{CreatedAt: now, UpdatedAt: now},
			Name:       name,
			Email:      email,
			OrgID:      &org.ID,
			AccessRole: models.RoleAdmin,
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.ErrDuplicateEmail
			}
			return fmt.Errorf("creating user: %w", err)
		}

		member := models.OrgMember{
			Base:   models.Base{CreatedAt: now, UpdatedAt: now},
			OrgID:  org.ID,
			UserID: user.ID,
			Role:   models.RoleAdmin,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("creating membership: %w", err)
		}

		otp := models.OneTimeCode{
			UserID:    user.ID,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(s.otpTTL),
		}
		if err := tx.Create(&otp).Error; err != nil {
			return fmt.Errorf("storing code: %w", err)
		}

		result = SignupResult{UserID: user.ID, OrgID: org.ID, Code: code}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.DispatchCode(ctx, result.UserID, email, code); err != nil {
			s.log.Warn("code dispatch failed", "user_id", result.UserID, "error", err)
		}
	}

	return &result, nil
}

// VerifyOTP consumes a code and sets the account password. A code works at
// most once, and only while its expiry is strictly in the future.
func (s *Service) VerifyOTP(ctx context.Context, input VerifyOTPInput) error {
	if input.Password == "" {
		return ErrPasswordRequired
	}

	var otp models.OneTimeCode
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND code = ? AND consumed_at IS NULL", input.UserID, input.Code).
		Order("id DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOTP
		}
		return err
	}

	now := s.now().UTC()
	if otp.Expired(now) {
		return ErrOTPExpired
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OneTimeCode{}).
			Where("id = ? AND consumed_at IS NULL", otp.ID).
			Update("consumed_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidOTP
		}

		res = tx.Model(&models.User{}).
			Where("id = ?", input.UserID).
			Updates(map[string]interface{}{
				"password_hash":  hash,
				"email_verified": true,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrUserNotFound
		}
		return nil
	})
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", input.Email).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}

	if !user.HasPassword() || !CheckPassword(input.Password, *user.PasswordHash) {
		return nil, ErrIncorrectPassword
	}

	var orgID uint
	if user.OrgID != nil {
		orgID = *user.OrgID
	}

	token, err := s.jwt.GenerateToken(user.ID, orgID, user.Email, user.AccessRole)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
