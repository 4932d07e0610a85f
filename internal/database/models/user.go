package models

// Access roles stored on users and memberships.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	Base
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`

	// PasswordHash stays nil until the account verifies its one-time code.
	PasswordHash *string `json:"-"`

	// OrgID is the organization the user was first created in. Membership
	// queries never read it; org_members is the source of truth.
	OrgID *uint `gorm:"index" json:"orgId"`

	EmailVerified bool   `gorm:"not null;default:false" json:"emailVerified"`
	AccessRole    string `gorm:"not null;default:'member'" json:"accessRole"`
}

func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account has completed verification.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
