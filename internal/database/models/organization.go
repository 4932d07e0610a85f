package models

type Organization struct {
	Base
	Name string `gorm:"not null" json:"name"`
}

func (Organization) TableName() string {
	return "organizations"
}

// OrgMember grants a user a role inside an organization. The (org_id,
// user_id) pair is unique at the store level; user_id deliberately carries
// no foreign key, so deleting a user leaves its memberships in place.
type OrgMember struct {
	Base
	OrgID  uint   `gorm:"not null;uniqueIndex:idx_org_members_org_user,priority:1" json:"orgId"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_org_members_org_user,priority:2;index" json:"userId"`
	Role   string `gorm:"not null;default:'member'" json:"role"`
}

func (OrgMember) TableName() string {
	return "org_members"
}
