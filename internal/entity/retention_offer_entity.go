package entity

import (
	"time"

	"github.com/google/uuid"
)

type OfferType string

const (
	OfferTypeDiscount  OfferType = "discount"
	OfferTypePause     OfferType = "pause"
	OfferTypeDowngrade OfferType = "downgrade"
	OfferTypeCustom    OfferType = "custom"
)

func (t OfferType) IsValid() bool {
	switch t {
	case OfferTypeDiscount, OfferTypePause, OfferTypeDowngrade, OfferTypeCustom:
		return true
	}
	return false
}

// RetentionOffer is shown to a customer who picks a cancel reason in the cancel flow.
type RetentionOffer struct {
	Id              uuid.UUID
	ProjectId       uuid.UUID
	CancelReason    string
	OfferType       OfferType
	Title           string
	Description     string
	CtaText         string
	DiscountPercent *int
	PauseDays       *int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
