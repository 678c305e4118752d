package memory

import (
	"context"
	"fmt"

	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/unitofwork"
)

type UnitOfWork struct {
	store    *Store
	inTx     bool
	snapshot *tables
}

func NewUnitOfWork(store *Store) unitofwork.UnitOfWork {
	return &UnitOfWork{store: store}
}

// run executes fn against the live tables. Outside a transaction each call
// takes the store lock on its own.
func (u *UnitOfWork) run(fn func(t *tables) error) error {
	if u.inTx {
		return fn(u.store.t)
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return fn(u.store.t)
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.inTx {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.mu.Lock()
	u.snapshot = u.store.t.clone()
	u.inTx = true
	return nil
}

func (u *UnitOfWork) Commit() error {
	if !u.inTx {
		return fmt.Errorf("no transaction to commit")
	}
	u.snapshot = nil
	u.inTx = false
	u.store.mu.Unlock()
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if !u.inTx {
		return fmt.Errorf("no transaction to rollback")
	}
	u.store.t = u.snapshot
	u.snapshot = nil
	u.inTx = false
	u.store.mu.Unlock()
	return nil
}

func (u *UnitOfWork) ProjectRepository() contract.ProjectRepository {
	return &projectRepository{u: u}
}

func (u *UnitOfWork) ChurnEventRepository() contract.ChurnEventRepository {
	return &churnEventRepository{u: u}
}

func (u *UnitOfWork) RecoveryVariantRepository() contract.RecoveryVariantRepository {
	return &recoveryVariantRepository{u: u}
}

func (u *UnitOfWork) RecoveryTemplateRepository() contract.RecoveryTemplateRepository {
	return &recoveryTemplateRepository{u: u}
}

func (u *UnitOfWork) PaymentFailureRepository() contract.PaymentFailureRepository {
	return &paymentFailureRepository{u: u}
}

func (u *UnitOfWork) DunningEmailRepository() contract.DunningEmailRepository {
	return &dunningEmailRepository{u: u}
}

func (u *UnitOfWork) DunningConfigRepository() contract.DunningConfigRepository {
	return &dunningConfigRepository{u: u}
}

func (u *UnitOfWork) RetentionOfferRepository() contract.RetentionOfferRepository {
	return &retentionOfferRepository{u: u}
}

type RepositoryFactory struct {
	store *Store
}

func NewRepositoryFactory(store *Store) unitofwork.RepositoryFactory {
	return &RepositoryFactory{store: store}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return NewUnitOfWork(f.store)
}
