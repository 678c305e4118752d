package mapper

import (
	"encoding/json"

	"windback-be/internal/entity"
	"windback-be/internal/model"

	"gorm.io/datatypes"
)

type ChurnMapper struct{}

func NewChurnMapper() *ChurnMapper {
	return &ChurnMapper{}
}

func (m *ChurnMapper) EventToEntity(c *model.ChurnEvent) *entity.ChurnEvent {
	if c == nil {
		return nil
	}
	e := &entity.ChurnEvent{
		Id:                     c.Id,
		ProjectId:              c.ProjectId,
		Provider:               c.Provider,
		ProviderCustomerId:     c.ProviderCustomerId,
		ProviderSubscriptionId: c.ProviderSubscriptionId,
		EventType:              c.EventType,
		CustomerEmail:          c.CustomerEmail,
		CustomerName:           c.CustomerName,
		PlanName:               c.PlanName,
		MrrCents:               c.MrrCents,
		Currency:               c.Currency,
		TenureDays:             c.TenureDays,
		LastActiveAt:           c.LastActiveAt,
		CancelReason:           c.CancelReason,
		CancelReasonText:       c.CancelReasonText,
		Metadata:               decodeJSONMap(c.Metadata),
		Status:                 entity.ChurnEventStatus(c.Status),
		SendClaimedAt:          c.SendClaimedAt,
		RecoveredAt:            c.RecoveredAt,
		LostAt:                 c.LostAt,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
	for i := range c.Variants {
		e.Variants = append(e.Variants, m.VariantToEntity(&c.Variants[i]))
	}
	return e
}

func (m *ChurnMapper) EventToModel(e *entity.ChurnEvent) *model.ChurnEvent {
	return &model.ChurnEvent{
		Id:                     e.Id,
		ProjectId:              e.ProjectId,
		Provider:               e.Provider,
		ProviderCustomerId:     e.ProviderCustomerId,
		ProviderSubscriptionId: e.ProviderSubscriptionId,
		EventType:              e.EventType,
		CustomerEmail:          e.CustomerEmail,
		CustomerName:           e.CustomerName,
		PlanName:               e.PlanName,
		MrrCents:               e.MrrCents,
		Currency:               e.Currency,
		TenureDays:             e.TenureDays,
		LastActiveAt:           e.LastActiveAt,
		CancelReason:           e.CancelReason,
		CancelReasonText:       e.CancelReasonText,
		Metadata:               encodeJSONMap(e.Metadata),
		Status:                 string(e.Status),
		SendClaimedAt:          e.SendClaimedAt,
		RecoveredAt:            e.RecoveredAt,
		LostAt:                 e.LostAt,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

func (m *ChurnMapper) VariantToEntity(v *model.RecoveryVariant) *entity.RecoveryVariant {
	if v == nil {
		return nil
	}
	return &entity.RecoveryVariant{
		Id:            v.Id,
		ChurnEventId:  v.ChurnEventId,
		Strategy:      v.Strategy,
		Subject:       v.Subject,
		Body:          v.Body,
		CouponCode:    v.CouponCode,
		CouponPercent: v.CouponPercent,
		Position:      v.Position,
		SendClaimedAt: v.SendClaimedAt,
		SentAt:        v.SentAt,
		OpenedAt:      v.OpenedAt,
		ClickedAt:     v.ClickedAt,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func (m *ChurnMapper) VariantToModel(v *entity.RecoveryVariant) *model.RecoveryVariant {
	return &model.RecoveryVariant{
		Id:            v.Id,
		ChurnEventId:  v.ChurnEventId,
		Strategy:      v.Strategy,
		Subject:       v.Subject,
		Body:          v.Body,
		CouponCode:    v.CouponCode,
		CouponPercent: v.CouponPercent,
		Position:      v.Position,
		SendClaimedAt: v.SendClaimedAt,
		SentAt:        v.SentAt,
		OpenedAt:      v.OpenedAt,
		ClickedAt:     v.ClickedAt,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func (m *ChurnMapper) TemplateToEntity(t *model.RecoveryTemplate) *entity.RecoveryTemplate {
	if t == nil {
		return nil
	}
	return &entity.RecoveryTemplate{
		Id:           t.Id,
		ProjectId:    t.ProjectId,
		CancelReason: t.CancelReason,
		Name:         t.Name,
		Subject:      t.Subject,
		Body:         t.Body,
		IsActive:     t.IsActive,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (m *ChurnMapper) TemplateToModel(t *entity.RecoveryTemplate) *model.RecoveryTemplate {
	return &model.RecoveryTemplate{
		Id:           t.Id,
		ProjectId:    t.ProjectId,
		CancelReason: t.CancelReason,
		Name:         t.Name,
		Subject:      t.Subject,
		Body:         t.Body,
		IsActive:     t.IsActive,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func decodeJSONMap(raw datatypes.JSON) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func encodeJSONMap(m map[string]interface{}) datatypes.JSON {
	if len(m) == 0 {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
