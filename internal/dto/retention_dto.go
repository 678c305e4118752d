package dto

import (
	"time"

	"github.com/google/uuid"
)

type RetentionOfferRequest struct {
	OfferType       string `json:"offer_type" validate:"required,oneof=discount pause downgrade custom"`
	Title           string `json:"title" validate:"required,max=255"`
	Description     string `json:"description"`
	CtaText         string `json:"cta_text" validate:"omitempty,max=100"`
	DiscountPercent *int   `json:"discount_percent"`
	PauseDays       *int   `json:"pause_days"`
	IsActive        *bool  `json:"is_active"`
}

type RetentionOfferResponse struct {
	Id              uuid.UUID `json:"id"`
	CancelReason    string    `json:"cancel_reason"`
	OfferType       string    `json:"offer_type"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CtaText         string    `json:"cta_text"`
	DiscountPercent *int      `json:"discount_percent"`
	PauseDays       *int      `json:"pause_days"`
	IsActive        bool      `json:"is_active"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PublicRetentionOfferResponse is what the embeddable cancel flow receives.
type PublicRetentionOfferResponse struct {
	CancelReason    string `json:"cancel_reason"`
	OfferType       string `json:"offer_type"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	CtaText         string `json:"cta_text"`
	DiscountPercent *int   `json:"discount_percent,omitempty"`
	PauseDays       *int   `json:"pause_days,omitempty"`
}
