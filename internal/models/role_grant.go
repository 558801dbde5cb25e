package models

import "time"

// RoleGrant gives an address a vault role. Roles cascade, so one row per
// holder is usually enough.
type RoleGrant struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Vault     string    `gorm:"size:64;not null;uniqueIndex:idx_role_grant" json:"vault"`
	Address   string    `gorm:"size:64;not null;uniqueIndex:idx_role_grant" json:"address"`
	Role      string    `gorm:"size:32;not null;uniqueIndex:idx_role_grant" json:"role"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (RoleGrant) TableName() string {
	return "role_grants"
}
