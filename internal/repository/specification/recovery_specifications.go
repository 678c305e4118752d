package specification

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByProjectID scopes a query to one project.
type ByProjectID struct {
	ProjectID uuid.UUID
}

func (s ByProjectID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("project_id = ?", s.ProjectID)
}

type ByChurnEventID struct {
	ChurnEventID uuid.UUID
}

func (s ByChurnEventID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("churn_event_id = ?", s.ChurnEventID)
}

type ByPaymentFailureID struct {
	PaymentFailureID uuid.UUID
}

func (s ByPaymentFailureID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("payment_failure_id = ?", s.PaymentFailureID)
}

// FieldIn matches rows whose column holds one of the given values.
type FieldIn struct {
	Field  string
	Values []string
}

func (s FieldIn) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s IN ?", s.Field), s.Values)
}

// NotNull matches rows where the column is set.
type NotNull struct {
	Field string
}

func (s NotNull) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s IS NOT NULL", s.Field))
}

// WithVariants preloads recovery variants ordered by position.
type WithVariants struct{}

func (s WithVariants) Apply(db *gorm.DB) *gorm.DB {
	return db.Preload("Variants", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	})
}

// WithDunningEmails preloads sent dunning emails ordered by retry number.
type WithDunningEmails struct{}

func (s WithDunningEmails) Apply(db *gorm.DB) *gorm.DB {
	return db.Preload("Emails", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("retry_number ASC")
	})
}
