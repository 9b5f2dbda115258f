package users

import (
	"strings"
	"time"
)

// User is an account provisioned from an authenticated principal.
type User struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	Provider       string    `gorm:"column:provider;size:32;not null;uniqueIndex:idx_users_principal,priority:1" json:"-"`
	Subject        string    `gorm:"column:subject;size:190;not null;uniqueIndex:idx_users_principal,priority:2" json:"-"`
	Email          string    `gorm:"column:email;size:320;index" json:"email"`
	FirstName      string    `gorm:"column:first_name;size:30" json:"first_name"`
	LastName       string    `gorm:"column:last_name;size:30" json:"last_name"`
	Bio            string    `gorm:"column:bio;type:text" json:"bio"`
	ProfilePicURL  string    `gorm:"column:profile_pic_url;size:512" json:"profile_pic_url"`
	FollowersCount int64     `gorm:"column:followers_count;not null;default:0" json:"followers_count"`
	FollowingCount int64     `gorm:"column:following_count;not null;default:0" json:"following_count"`
	LastSeenAt     time.Time `gorm:"column:last_seen_at" json:"-"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// Follow records that Follower follows Following.
type Follow struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	FollowerID  uint      `gorm:"column:follower_id;not null;uniqueIndex:idx_follows_pair,priority:1" json:"follower_id"`
	FollowingID uint      `gorm:"column:following_id;not null;uniqueIndex:idx_follows_pair,priority:2;index" json:"following_id"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName exposes the table backing follow relations.
func (Follow) TableName() string {
	return "follows"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
