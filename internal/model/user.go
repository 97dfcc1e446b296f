package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role enum constants
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
)

// User represents a staff member. Department drives responsible-user
// selection when the workflow engine assigns auto-generated tasks.
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username   string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"`         // Omit password from JSON requests/responses
	Role       string         `gorm:"type:varchar(50);not null;index" json:"role"` // user, admin, super-admin
	Department string         `gorm:"type:varchar(100);not null;index" json:"department"`
	Active     bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// BeforeCreate assigns the id client-side so non-postgres drivers
// (the sqlite test database) get one too.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ValidRole reports whether role is one of the accepted role values.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin || role == RoleSuperAdmin
}
