package model

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Slug          string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name          string    `gorm:"type:varchar(255);not null"`
	PublicKey     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	WebhookSecret string    `gorm:"type:varchar(255);not null"`
	AutoSend      bool      `gorm:"default:false"`
	FromName      string    `gorm:"type:varchar(255)"`
	FromEmail     string    `gorm:"type:varchar(255)"`

	SlackWebhookURL     string `gorm:"type:text"`
	CustomWebhookURL    string `gorm:"type:text"`
	CustomWebhookSecret string `gorm:"type:varchar(255)"`

	NotifyChurnCreated     bool `gorm:"not null"`
	NotifyChurnRecovered   bool `gorm:"not null"`
	NotifyPaymentFailed    bool `gorm:"not null"`
	NotifyPaymentRecovered bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}
