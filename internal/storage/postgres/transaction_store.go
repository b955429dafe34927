package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `
	id, asset_definition_id, name, asset_type, transaction_type,
	quantity, unit_price, costs, date, updated_at, cached_income
`

// Insert adds a new ledger entry. Returns ErrDuplicateKey if the id exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, asset_definition_id, name, asset_type, transaction_type,
			quantity, unit_price, costs, date, updated_at, cached_income
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		tx.ID,
		tx.AssetDefinitionID,
		tx.Name,
		string(tx.Type),
		string(tx.TransactionType),
		tx.Quantity,
		tx.UnitPrice,
		tx.Costs,
		tx.Date,
		tx.UpdatedAt,
		tx.CachedIncome,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Update replaces an existing entry. Returns ErrNotFound if not exists.
func (s *TransactionStore) Update(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions SET
			asset_definition_id = $2, name = $3, asset_type = $4,
			transaction_type = $5, quantity = $6, unit_price = $7,
			costs = $8, date = $9, updated_at = $10, cached_income = $11
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		tx.ID,
		tx.AssetDefinitionID,
		tx.Name,
		string(tx.Type),
		string(tx.TransactionType),
		tx.Quantity,
		tx.UnitPrice,
		tx.Costs,
		tx.Date,
		tx.UpdatedAt,
		tx.CachedIncome,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes an entry. Returns ErrNotFound if not exists.
func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves an entry by its id. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return tx, nil
}

// GetAll retrieves the full ledger, ordered by date ASC then id ASC.
func (s *TransactionStore) GetAll(ctx context.Context) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY date ASC, id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// SetCachedIncome writes the per-transaction income annex without touching
// updated_at; the annex is derived data, not a ledger edit.
func (s *TransactionStore) SetCachedIncome(ctx context.Context, id string, income *float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions SET cached_income = $2 WHERE id = $1`, id, income)
	if err != nil {
		return fmt.Errorf("set cached income: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var assetType, txType string

	err := row.Scan(
		&tx.ID,
		&tx.AssetDefinitionID,
		&tx.Name,
		&assetType,
		&txType,
		&tx.Quantity,
		&tx.UnitPrice,
		&tx.Costs,
		&tx.Date,
		&tx.UpdatedAt,
		&tx.CachedIncome,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = domain.AssetType(assetType)
	tx.TransactionType = domain.TransactionType(txType)
	tx.Date = tx.Date.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
