package model

import (
	"time"

	"github.com/google/uuid"
)

type RetentionOffer struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_retention_offers_reason,priority:1"`
	CancelReason    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_retention_offers_reason,priority:2"`
	OfferType       string    `gorm:"type:varchar(20);not null"`
	Title           string    `gorm:"type:varchar(255);not null"`
	Description     string    `gorm:"type:text"`
	CtaText         string    `gorm:"type:varchar(100)"`
	DiscountPercent *int
	PauseDays       *int
	IsActive        bool      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (RetentionOffer) TableName() string {
	return "retention_offers"
}
