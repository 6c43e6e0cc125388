package models

import "time"

// Notification platforms understood by the sender registry.
const (
	PlatformDiscord = "discord"
	PlatformEmail   = "email"
)

// Subscription links a recipient to a class. UserID is the platform
// identifier: a Discord user ID or an email address.
type Subscription struct {
	ID        uint   `gorm:"primaryKey"`
	Platform  string `gorm:"uniqueIndex:idx_platform_user_class"`
	UserID    string `gorm:"uniqueIndex:idx_platform_user_class"`
	ClassKey  string `gorm:"uniqueIndex:idx_platform_user_class;index"`
	CreatedAt time.Time
}

type Subscriptions []Subscription
