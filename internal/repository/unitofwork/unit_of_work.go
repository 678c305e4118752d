package unitofwork

import (
	"context"

	"windback-be/internal/repository/contract"
)

// UnitOfWork groups the repositories of one request. Repositories obtained
// after Begin share the transaction until Commit or Rollback.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ProjectRepository() contract.ProjectRepository
	ChurnEventRepository() contract.ChurnEventRepository
	RecoveryVariantRepository() contract.RecoveryVariantRepository
	RecoveryTemplateRepository() contract.RecoveryTemplateRepository
	PaymentFailureRepository() contract.PaymentFailureRepository
	DunningEmailRepository() contract.DunningEmailRepository
	DunningConfigRepository() contract.DunningConfigRepository
	RetentionOfferRepository() contract.RetentionOfferRepository
}

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
