package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
)

// User represents the canonical identity entity. Buyers, sellers and
// administrators all live in the same table, separated by role.
type User struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Email       string           `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string           `gorm:"column:display_name;not null"`
	Phone       *string          `gorm:"column:phone"`
	Role        enums.MemberRole `gorm:"column:role;type:text;not null;default:'buyer'"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	LastLoginAt *time.Time       `gorm:"column:last_login_at"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
