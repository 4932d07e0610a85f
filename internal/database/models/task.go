package models

// DateLayout is the ISO-8601 calendar date format used for task dates.
const DateLayout = "2006-01-02"

// Task belongs to a membership rather than a user; its organization is
// reached through org_members.
type Task struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	OrgMemberID uint   `gorm:"not null;index" json:"org_member_id"`
	StartDate   string `gorm:"size:10;not null" json:"start_date"`
	EndDate     string `gorm:"size:10;not null" json:"end_date"`
	Description string `json:"description"`
}

func (Task) TableName() string {
	return "tasks"
}
