package models

import (
	"context"
	"errors"
	"time"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"gorm.io/gorm"
)

const (
	UserRoleAdmin  = "ADMIN"
	UserRoleMember = "MEMBER"
)

type User struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:100;not null" json:"username" binding:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Role      string    `gorm:"size:20;not null;default:MEMBER" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetUserByUsername checks the Redis cache first, then the DB.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	_ = config.SetRedisObject("User:"+username, &user, time.Hour)
	return &user, nil
}

var ErrUserNotFound = errors.New("user not found")
