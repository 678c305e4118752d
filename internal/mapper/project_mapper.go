package mapper

import (
	"windback-be/internal/entity"
	"windback-be/internal/model"
)

type ProjectMapper struct{}

func NewProjectMapper() *ProjectMapper {
	return &ProjectMapper{}
}

func (m *ProjectMapper) ToEntity(p *model.Project) *entity.Project {
	if p == nil {
		return nil
	}
	return &entity.Project{
		Id:                     p.Id,
		Slug:                   p.Slug,
		Name:                   p.Name,
		PublicKey:              p.PublicKey,
		WebhookSecret:          p.WebhookSecret,
		AutoSend:               p.AutoSend,
		FromName:               p.FromName,
		FromEmail:              p.FromEmail,
		SlackWebhookURL:        p.SlackWebhookURL,
		CustomWebhookURL:       p.CustomWebhookURL,
		CustomWebhookSecret:    p.CustomWebhookSecret,
		NotifyChurnCreated:     p.NotifyChurnCreated,
		NotifyChurnRecovered:   p.NotifyChurnRecovered,
		NotifyPaymentFailed:    p.NotifyPaymentFailed,
		NotifyPaymentRecovered: p.NotifyPaymentRecovered,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

func (m *ProjectMapper) ToModel(p *entity.Project) *model.Project {
	return &model.Project{
		Id:                     p.Id,
		Slug:                   p.Slug,
		Name:                   p.Name,
		PublicKey:              p.PublicKey,
		WebhookSecret:          p.WebhookSecret,
		AutoSend:               p.AutoSend,
		FromName:               p.FromName,
		FromEmail:              p.FromEmail,
		SlackWebhookURL:        p.SlackWebhookURL,
		CustomWebhookURL:       p.CustomWebhookURL,
		CustomWebhookSecret:    p.CustomWebhookSecret,
		NotifyChurnCreated:     p.NotifyChurnCreated,
		NotifyChurnRecovered:   p.NotifyChurnRecovered,
		NotifyPaymentFailed:    p.NotifyPaymentFailed,
		NotifyPaymentRecovered: p.NotifyPaymentRecovered,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

func (m *ProjectMapper) OfferToEntity(o *model.RetentionOffer) *entity.RetentionOffer {
	if o == nil {
		return nil
	}
	return &entity.RetentionOffer{
		Id:              o.Id,
		ProjectId:       o.ProjectId,
		CancelReason:    o.CancelReason,
		OfferType:       entity.OfferType(o.OfferType),
		Title:           o.Title,
		Description:     o.Description,
		CtaText:         o.CtaText,
		DiscountPercent: o.DiscountPercent,
		PauseDays:       o.PauseDays,
		IsActive:        o.IsActive,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (m *ProjectMapper) OfferToModel(o *entity.RetentionOffer) *model.RetentionOffer {
	return &model.RetentionOffer{
		Id:              o.Id,
		ProjectId:       o.ProjectId,
		CancelReason:    o.CancelReason,
		OfferType:       string(o.OfferType),
		Title:           o.Title,
		Description:     o.Description,
		CtaText:         o.CtaText,
		DiscountPercent: o.DiscountPercent,
		PauseDays:       o.PauseDays,
		IsActive:        o.IsActive,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
