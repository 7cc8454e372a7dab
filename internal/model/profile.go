package model

import "time"

type Role string

const (
	RoleSeeker Role = "seeker"
	RoleEarner Role = "earner"
)

func (r Role) Valid() bool {
	return r == RoleSeeker || r == RoleEarner
}

// Profile holds the marketplace side a user is on. Role is fixed once created.
type Profile struct {
	UID         string    `gorm:"column:uid;primaryKey;size:128" json:"uid"`
	Role        Role      `gorm:"column:role;size:16;not null;index" json:"role"`
	DisplayName string    `gorm:"column:display_name;size:120" json:"displayName"`
	PhotoURL    *string   `gorm:"column:photo_url;size:512" json:"photoUrl,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Profile) TableName() string {
	return "profiles"
}
