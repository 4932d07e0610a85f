package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hugh/taskhub/internal/auth"
	"github.com/hugh/taskhub/internal/database/models"
	"github.com/hugh/taskhub/internal/testutil"
	"github.com/hugh/taskhub/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDispatcher struct {
	calls []string
	err   error
}

func (d *recordingDispatcher) DispatchCode(_ context.Context, _ uint, email, code string) error {
	d.calls = append(d.calls, email+":"+code)
	return d.err
}

func newService(t *testing.T, opts ...auth.Option) (*auth.Service, *gorm.DB, *fakeClock) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]auth.Option{auth.WithClock(clock.Now)}, opts...)
	return auth.NewService(db, testutil.CreateTestJWTService(), opts...), db, clock
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestSignup_Provisions(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := testutil.TestContext(t)

	res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.NotZero(t, res.UserID)
	assert.Len(t, res.Code, 6)

	var org models.Organization
	require.NoError(t, db.First(&org, res.OrgID).Error)
	assert.Equal(t, "Ada's Organization", org.Name)

	var user models.User
	require.NoError(t, db.First(&user, res.UserID).Error)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.RoleAdmin, user.AccessRole)
	assert.False(t, user.EmailVerified)
	assert.False(t, user.HasPassword())
	require.NotNil(t, user.OrgID)
	assert.Equal(t, org.ID, *user.OrgID)

	member := testutil.MembershipFor(t, db, org.ID, user.ID)
	assert.Equal(t, models.RoleAdmin, member.Role)

	var otp models.OneTimeCode
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&otp).Error)
	assert.Equal(t, res.Code, otp.Code)
	assert.Equal(t, auth.DefaultOTPTTL, otp.ExpiresAt.Sub(otp.CreatedAt))
	assert.Nil(t, otp.ConsumedAt)
}

func TestSignup_MissingFields(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	_, err := svc.Signup(ctx, auth.SignupInput{Name: "", Email: "x@example.com"})
	assert.ErrorIs(t, err, models.ErrMissingFields)

	_, err = svc.Signup(ctx, auth.SignupInput{Name: "X", Email: "   "})
	assert.ErrorIs(t, err, models.ErrMissingFields)
}

func TestSignup_DuplicateEmailLeavesNoOrphanOrg(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := testutil.TestContext(t)

	_, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	orgsBefore := count(t, db, &models.Organization{})

	_, err = svc.Signup(ctx, auth.SignupInput{Name: "Imposter", Email: "ada@example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)

	assert.Equal(t, orgsBefore, count(t, db, &models.Organization{}))
	assert.Equal(t, int64(1), count(t, db, &models.User{}))
	assert.Equal(t, int64(1), count(t, db, &models.OneTimeCode{}))
}

func TestSignup_Dispatches(t *testing.T) {
	d := &recordingDispatcher{}
	svc, _, _ := newService(t, auth.WithDispatcher(d))

	res, err := svc.Signup(testutil.TestContext(t), auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com:" + res.Code}, d.calls)
}

func TestSignup_DispatchFailureIsNotFatal(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("queue down")}
	svc, _, _ := newService(t, auth.WithDispatcher(d), auth.WithLogger(util.DiscardLogger()))

	res, err := svc.Signup(testutil.TestContext(t), auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, res.UserID)
	assert.Len(t, d.calls, 1)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) error {
	return &auth.ThrottleError{RetryAfter: 30 * time.Second}
}

func TestSignup_Throttled(t *testing.T) {
	svc, db, _ := newService(t, auth.WithLimiter(denyLimiter{}))

	_, err := svc.Signup(testutil.TestContext(t), auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, auth.ErrOTPThrottled)
	assert.Zero(t, count(t, db, &models.User{}))
}

func TestVerifyOTP_ThenLogin(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := testutil.TestContext(t)

	res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	err = svc.VerifyOTP(ctx, auth.VerifyOTPInput{UserID: res.UserID, Code: res.Code, Password: "s3cret-pass"})
	require.NoError(t, err)

	var user models.User
	require.NoError(t, db.First(&user, res.UserID).Error)
	assert.True(t, user.EmailVerified)
	assert.True(t, user.HasPassword())

	login, err := svc.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, res.UserID, login.User.ID)
	assert.Equal(t, models.RoleAdmin, login.User.AccessRole)
	require.NotNil(t, login.User.OrgID)
	assert.Equal(t, res.OrgID, *login.User.OrgID)
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	input := auth.VerifyOTPInput{UserID: res.UserID, Code: res.Code, Password: "first-password"}
	require.NoError(t, svc.VerifyOTP(ctx, input))

	input.Password = "second-password"
	assert.ErrorIs(t, svc.VerifyOTP(ctx, input), auth.ErrInvalidOTP)

	// The replay must not have changed the password.
	_, err = svc.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "first-password"})
	assert.NoError(t, err)
}

func TestVerifyOTP_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{"just before expiry", auth.DefaultOTPTTL - time.Second, nil},
		{"exactly at expiry", auth.DefaultOTPTTL, auth.ErrOTPExpired},
		{"after expiry", auth.DefaultOTPTTL + time.Minute, auth.ErrOTPExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, clock := newService(t)
			ctx := testutil.TestContext(t)

			res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
			require.NoError(t, err)

			clock.Advance(tt.advance)
			err = svc.VerifyOTP(ctx, auth.VerifyOTPInput{UserID: res.UserID, Code: res.Code, Password: "password-123"})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerifyOTP_CustomTTL(t *testing.T) {
	svc, _, clock := newService(t, auth.WithOTPTTL(10*time.Minute))
	ctx := testutil.TestContext(t)

	res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.NoError(t, svc.VerifyOTP(ctx, auth.VerifyOTPInput{UserID: res.UserID, Code: res.Code, Password: "password-123"}))
}

func TestVerifyOTP_WrongCodeOrUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	wrong := "000000"
	if res.Code == wrong {
		wrong = "000001"
	}

	err = svc.VerifyOTP(ctx, auth.VerifyOTPInput{UserID: res.UserID, Code: wrong, Password: "password-123"})
	assert.ErrorIs(t, err, auth.ErrInvalidOTP)

	err = svc.VerifyOTP(ctx, auth.VerifyOTPInput{UserID: res.UserID + 100, Code: res.Code, Password: "password-123"})
	assert.ErrorIs(t, err, auth.ErrInvalidOTP)
}

func TestVerifyOTP_RequiresPassword(t *testing.T) {
	svc, _, _ := newService(t)

	err := svc.VerifyOTP(testutil.TestContext(t), auth.VerifyOTPInput{UserID: 1, Code: "123456"})
	assert.ErrorIs(t, err, auth.ErrPasswordRequired)
}

func TestVerifyOTP_UserDeleted(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := testutil.TestContext(t)

	res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.User{}, res.UserID).Error)

	err = svc.VerifyOTP(ctx, auth.VerifyOTPInput{UserID: res.UserID, Code: res.Code, Password: "password-123"})
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	// The consume rolled back with the failed user update.
	var otp models.OneTimeCode
	require.NoError(t, db.Where("user_id = ?", res.UserID).First(&otp).Error)
	assert.Nil(t, otp.ConsumedAt)
}

func TestSignup_StoresEmailAsGiven(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := testutil.TestContext(t)

	res, err := svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "Ada@Example.com"})
	require.NoError(t, err)

	var user models.User
	require.NoError(t, db.First(&user, res.UserID).Error)
	assert.Equal(t, "Ada@Example.com", user.Email)

	require.NoError(t, svc.VerifyOTP(ctx, auth.VerifyOTPInput{UserID: res.UserID, Code: res.Code, Password: "pw"}))

	_, err = svc.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrEmailNotFound)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "Ada@Example.com", Password: "pw"})
	assert.NoError(t, err)

	// A differently cased address is a different account.
	_, err = svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	assert.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	_, err := svc.Login(ctx, auth.LoginInput{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, auth.ErrEmailNotFound)

	_, err = svc.Signup(ctx, auth.SignupInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	// Unverified accounts have no password yet.
	_, err = svc.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: ""})
	assert.ErrorIs(t, err, auth.ErrIncorrectPassword)
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := testutil.NewTestContext(t)
	defer ts.Cleanup()

	svc := auth.NewService(ts.DB, ts.JWTService)

	_, err := svc.Login(testutil.TestContext(t), auth.LoginInput{Email: ts.User.Email, Password: "not-the-password"})
	assert.ErrorIs(t, err, auth.ErrIncorrectPassword)

	res, err := svc.Login(testutil.TestContext(t), auth.LoginInput{Email: ts.User.Email, Password: testutil.TestPassword})
	require.NoError(t, err)

	claims, err := ts.JWTService.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, ts.User.ID, claims.UserID)
	assert.Equal(t, ts.Org.ID, claims.OrgID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestGetUserByID(t *testing.T) {
	ts := testutil.NewTestContext(t)
	defer ts.Cleanup()

	svc := auth.NewService(ts.DB, ts.JWTService)

	user, err := svc.GetUserByID(testutil.TestContext(t), ts.User.ID)
	require.NoError(t, err)
	assert.Equal(t, ts.User.Email, user.Email)

	_, err = svc.GetUserByID(testutil.TestContext(t), ts.User.ID+999)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}
