package repositories_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
	infrarepos "payhook.dev/ledger/internal/infrastructure/repositories"
	"payhook.dev/ledger/pkg/money"
)

func TestTransactionRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := infrarepos.NewTransactionRepository(db)

	m, err := money.New(5000, "NGN")
	require.NoError(t, err)

	txn, err := repo.Create(context.Background(), repositories.CreateTransactionInput{
		ApplicationRef:     "app-ref-1",
		Provider:           "paystack",
		Status:             entities.StatusPending,
		Money:              m,
		VerificationMethod: entities.VerificationAPIVerified,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "", txn.ID.String())

	found, err := repo.Find(context.Background(), repositories.TransactionQuery{ApplicationRef: strPtrTest("app-ref-1")})
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)
}

func TestTransactionRepository_Create_DuplicateApplicationRef(t *testing.T) {
	db := newTestDB(t)
	repo := infrarepos.NewTransactionRepository(db)

	m, _ := money.New(100, "USD")
	in := repositories.CreateTransactionInput{
		ApplicationRef:     "dup-ref",
		Provider:           "stripe",
		Status:             entities.StatusPending,
		Money:              m,
		VerificationMethod: entities.VerificationWebhookOnly,
	}

	_, err := repo.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), in)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateApplicationRef)
}

func TestTransactionRepository_Find_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := infrarepos.NewTransactionRepository(db)

	_, err := repo.Find(context.Background(), repositories.TransactionQuery{ApplicationRef: strPtrTest("missing")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTransactionRepository_UpdateStatus_WritesAuditRow(t *testing.T) {
	db := newTestDB(t)
	repo := infrarepos.NewTransactionRepository(db)
	uow := infrarepos.NewUnitOfWork(db)

	m, _ := money.New(100, "USD")
	txn, err := repo.Create(context.Background(), repositories.CreateTransactionInput{
		ApplicationRef:     "audit-ref",
		Provider:           "stripe",
		Status:             entities.StatusPending,
		Money:              m,
		VerificationMethod: entities.VerificationWebhookOnly,
	})
	require.NoError(t, err)

	from := entities.StatusPending
	err = uow.Do(context.Background(), func(txCtx context.Context) error {
		lockCtx := uow.WithLock(txCtx)
		return repo.UpdateStatus(lockCtx, txn.ID, entities.StatusProcessing, repositories.AuditEntry{
			FromStatus:  &from,
			ToStatus:    entities.StatusProcessing,
			TriggerType: entities.TriggerWebhook,
			Actor:       "webhook:stripe",
		})
	})
	require.NoError(t, err)

	updated, err := repo.Find(context.Background(), repositories.TransactionQuery{ID: &txn.ID})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusProcessing, updated.Status)

	var count int64
	db.Model(&entities.AuditLog{}).Where("transaction_id = ?", txn.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func strPtrTest(s string) *string { return &s }
