package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// AssetDefinitionStore implements storage.AssetDefinitionStore using
// PostgreSQL. Schedule payloads (dividend, bond, rental) are stored as
// JSONB so the schema does not change when a payload grows a field.
type AssetDefinitionStore struct {
	pool *Pool
}

// NewAssetDefinitionStore creates a new AssetDefinitionStore.
func NewAssetDefinitionStore(pool *Pool) *AssetDefinitionStore {
	return &AssetDefinitionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AssetDefinitionStore = (*AssetDefinitionStore)(nil)

const assetDefinitionColumns = `
	id, name, ticker, asset_type, current_price,
	dividend_info, bond_info, rental_info, updated_at
`

// Insert adds a new definition. Returns ErrDuplicateKey if the id exists.
func (s *AssetDefinitionStore) Insert(ctx context.Context, def *domain.AssetDefinition) error {
	dividend, bond, rental, err := marshalPayloads(def)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO asset_definitions (
			id, name, ticker, asset_type, current_price,
			dividend_info, bond_info, rental_info, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.pool.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Ticker,
		string(def.Type),
		def.CurrentPrice,
		dividend,
		bond,
		rental,
		def.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert asset definition: %w", err)
	}
	return nil
}

// Update replaces an existing definition. Returns ErrNotFound if not exists.
func (s *AssetDefinitionStore) Update(ctx context.Context, def *domain.AssetDefinition) error {
	dividend, bond, rental, err := marshalPayloads(def)
	if err != nil {
		return err
	}

	query := `
		UPDATE asset_definitions SET
			name = $2, ticker = $3, asset_type = $4, current_price = $5,
			dividend_info = $6, bond_info = $7, rental_info = $8, updated_at = $9
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Ticker,
		string(def.Type),
		def.CurrentPrice,
		dividend,
		bond,
		rental,
		def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update asset definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a definition by its id. Returns ErrNotFound if not exists.
func (s *AssetDefinitionStore) GetByID(ctx context.Context, id string) (*domain.AssetDefinition, error) {
	query := `SELECT ` + assetDefinitionColumns + ` FROM asset_definitions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	def, err := scanAssetDefinition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset definition by id: %w", err)
	}
	return def, nil
}

// GetByTicker retrieves a definition by ticker. Returns ErrNotFound if not exists.
func (s *AssetDefinitionStore) GetByTicker(ctx context.Context, ticker string) (*domain.AssetDefinition, error) {
	query := `SELECT ` + assetDefinitionColumns + ` FROM asset_definitions WHERE ticker = $1 LIMIT 1`

	row := s.pool.QueryRow(ctx, query, ticker)
	def, err := scanAssetDefinition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset definition by ticker: %w", err)
	}
	return def, nil
}

// GetAll retrieves all definitions, ordered by id ASC.
func (s *AssetDefinitionStore) GetAll(ctx context.Context) ([]*domain.AssetDefinition, error) {
	query := `SELECT ` + assetDefinitionColumns + ` FROM asset_definitions ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all asset definitions: %w", err)
	}
	defer rows.Close()

	var defs []*domain.AssetDefinition
	for rows.Next() {
		def, err := scanAssetDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset definition row: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset definition rows: %w", err)
	}
	return defs, nil
}

// UpdatePrice sets the current price and bumps updated_at.
// Returns ErrNotFound if not exists.
func (s *AssetDefinitionStore) UpdatePrice(ctx context.Context, id string, price float64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE asset_definitions SET current_price = $2, updated_at = $3 WHERE id = $1`,
		id, price, at)
	if err != nil {
		return fmt.Errorf("update asset price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// marshalPayloads encodes the optional schedule payloads. Nil payloads are
// stored as SQL NULL, not as the JSON literal "null".
func marshalPayloads(def *domain.AssetDefinition) (dividend, bond, rental []byte, err error) {
	if def.DividendInfo != nil {
		if dividend, err = json.Marshal(def.DividendInfo); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal dividend info: %w", err)
		}
	}
	if def.BondInfo != nil {
		if bond, err = json.Marshal(def.BondInfo); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal bond info: %w", err)
		}
	}
	if def.RentalInfo != nil {
		if rental, err = json.Marshal(def.RentalInfo); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal rental info: %w", err)
		}
	}
	return dividend, bond, rental, nil
}

// scanAssetDefinition scans a single row into an AssetDefinition.
func scanAssetDefinition(row pgx.Row) (*domain.AssetDefinition, error) {
	var def domain.AssetDefinition
	var assetType string
	var dividend, bond, rental []byte

	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Ticker,
		&assetType,
		&def.CurrentPrice,
		&dividend,
		&bond,
		&rental,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.Type = domain.AssetType(assetType)
	def.UpdatedAt = def.UpdatedAt.UTC()

	if len(dividend) > 0 {
		def.DividendInfo = &domain.DividendInfo{}
		if err := json.Unmarshal(dividend, def.DividendInfo); err != nil {
			return nil, fmt.Errorf("unmarshal dividend info: %w", err)
		}
	}
	if len(bond) > 0 {
		def.BondInfo = &domain.BondInfo{}
		if err := json.Unmarshal(bond, def.BondInfo); err != nil {
			return nil, fmt.Errorf("unmarshal bond info: %w", err)
		}
	}
	if len(rental) > 0 {
		def.RentalInfo = &domain.RentalInfo{}
		if err := json.Unmarshal(rental, def.RentalInfo); err != nil {
			return nil, fmt.Errorf("unmarshal rental info: %w", err)
		}
	}
	return &def, nil
}
