package unitofwork

import (
	"context"
	"errors"

	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/implementation"

	"gorm.io/gorm"
)

var (
	ErrTransactionStarted = errors.New("transaction already started")
	ErrNoTransaction      = errors.New("no transaction in progress")
)

type gormRepositoryFactory struct {
	db *gorm.DB
}

// NewRepositoryFactory builds units of work over the shared gorm pool.
func NewRepositoryFactory(db *gorm.DB) RepositoryFactory {
	return &gormRepositoryFactory{db: db}
}

func (f *gormRepositoryFactory) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return &gormUnitOfWork{db: f.db.WithContext(ctx)}
}

type gormUnitOfWork struct {
	db *gorm.DB
	tx *gorm.DB
}

func (u *gormUnitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *gormUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ErrTransactionStarted
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *gormUnitOfWork) Commit() error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

// Rollback after a successful Commit returns ErrNoTransaction, so a
// deferred Rollback is harmless.
func (u *gormUnitOfWork) Rollback() error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *gormUnitOfWork) ProjectRepository() contract.ProjectRepository {
	return implementation.NewProjectRepository(u.conn())
}

func (u *gormUnitOfWork) ChurnEventRepository() contract.ChurnEventRepository {
	return implementation.NewChurnEventRepository(u.conn())
}

func (u *gormUnitOfWork) RecoveryVariantRepository() contract.RecoveryVariantRepository {
	return implementation.NewRecoveryVariantRepository(u.conn())
}

func (u *gormUnitOfWork) RecoveryTemplateRepository() contract.RecoveryTemplateRepository {
	return implementation.NewRecoveryTemplateRepository(u.conn())
}

func (u *gormUnitOfWork) PaymentFailureRepository() contract.PaymentFailureRepository {
	return implementation.NewPaymentFailureRepository(u.conn())
}

func (u *gormUnitOfWork) DunningEmailRepository() contract.DunningEmailRepository {
	return implementation.NewDunningEmailRepository(u.conn())
}

func (u *gormUnitOfWork) DunningConfigRepository() contract.DunningConfigRepository {
	return implementation.NewDunningConfigRepository(u.conn())
}

func (u *gormUnitOfWork) RetentionOfferRepository() contract.RetentionOfferRepository {
	return implementation.NewRetentionOfferRepository(u.conn())
}
