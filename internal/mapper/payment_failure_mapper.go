package mapper

import (
	"encoding/json"

	"windback-be/internal/entity"
	"windback-be/internal/model"

	"gorm.io/datatypes"
)

type PaymentFailureMapper struct{}

func NewPaymentFailureMapper() *PaymentFailureMapper {
	return &PaymentFailureMapper{}
}

func (m *PaymentFailureMapper) ToEntity(p *model.PaymentFailure) *entity.PaymentFailure {
	if p == nil {
		return nil
	}
	e := &entity.PaymentFailure{
		Id:                 p.Id,
		ProjectId:          p.ProjectId,
		Provider:           p.Provider,
		ProviderInvoiceId:  p.ProviderInvoiceId,
		ProviderCustomerId: p.ProviderCustomerId,
		CustomerEmail:      p.CustomerEmail,
		CustomerName:       p.CustomerName,
		AmountCents:        p.AmountCents,
		Currency:           p.Currency,
		FailureReason:      p.FailureReason,
		Status:             entity.PaymentFailureStatus(p.Status),
		RetryCount:         p.RetryCount,
		MaxRetries:         p.MaxRetries,
		NextRetryAt:        p.NextRetryAt,
		ClaimToken:         p.ClaimToken,
		RecoveredAt:        p.RecoveredAt,
		AbandonedAt:        p.AbandonedAt,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	for i := range p.Emails {
		e.Emails = append(e.Emails, m.EmailToEntity(&p.Emails[i]))
	}
	return e
}

func (m *PaymentFailureMapper) ToModel(e *entity.PaymentFailure) *model.PaymentFailure {
	return &model.PaymentFailure{
		Id:                 e.Id,
		ProjectId:          e.ProjectId,
		Provider:           e.Provider,
		ProviderInvoiceId:  e.ProviderInvoiceId,
		ProviderCustomerId: e.ProviderCustomerId,
		CustomerEmail:      e.CustomerEmail,
		CustomerName:       e.CustomerName,
		AmountCents:        e.AmountCents,
		Currency:           e.Currency,
		FailureReason:      e.FailureReason,
		Status:             string(e.Status),
		RetryCount:         e.RetryCount,
		MaxRetries:         e.MaxRetries,
		NextRetryAt:        e.NextRetryAt,
		ClaimToken:         e.ClaimToken,
		RecoveredAt:        e.RecoveredAt,
		AbandonedAt:        e.AbandonedAt,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func (m *PaymentFailureMapper) EmailToEntity(d *model.DunningEmail) *entity.DunningEmail {
	if d == nil {
		return nil
	}
	return &entity.DunningEmail{
		Id:               d.Id,
		PaymentFailureId: d.PaymentFailureId,
		RetryNumber:      d.RetryNumber,
		Tone:             d.Tone,
		Subject:          d.Subject,
		Body:             d.Body,
		SentAt:           d.SentAt,
		CreatedAt:        d.CreatedAt,
	}
}

func (m *PaymentFailureMapper) EmailToModel(d *entity.DunningEmail) *model.DunningEmail {
	return &model.DunningEmail{
		Id:               d.Id,
		PaymentFailureId: d.PaymentFailureId,
		RetryNumber:      d.RetryNumber,
		Tone:             d.Tone,
		Subject:          d.Subject,
		Body:             d.Body,
		SentAt:           d.SentAt,
		CreatedAt:        d.CreatedAt,
	}
}

func (m *PaymentFailureMapper) ConfigToEntity(c *model.DunningConfig) *entity.DunningConfig {
	if c == nil {
		return nil
	}
	var tones []string
	if len(c.ToneSequence) > 0 {
		_ = json.Unmarshal(c.ToneSequence, &tones)
	}
	return &entity.DunningConfig{
		Id:                 c.Id,
		ProjectId:          c.ProjectId,
		MaxRetries:         c.MaxRetries,
		RetryIntervalHours: c.RetryIntervalHours,
		ToneSequence:       tones,
		CustomFromName:     c.CustomFromName,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func (m *PaymentFailureMapper) ConfigToModel(c *entity.DunningConfig) *model.DunningConfig {
	tones, err := json.Marshal(c.ToneSequence)
	if err != nil || c.ToneSequence == nil {
		tones = []byte("[]")
	}
	return &model.DunningConfig{
		Id:                 c.Id,
		ProjectId:          c.ProjectId,
		MaxRetries:         c.MaxRetries,
		RetryIntervalHours: c.RetryIntervalHours,
		ToneSequence:       datatypes.JSON(tones),
		CustomFromName:     c.CustomFromName,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
