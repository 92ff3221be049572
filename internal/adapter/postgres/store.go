package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Catalog ---

const businessColumns = `id, name, category, description, address, phone, hours, tags, active, settings`

func (s *Store) ListActiveBusinesses(ctx context.Context) ([]catalog.Business, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var out []catalog.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBusiness(ctx context.Context, id string) (*catalog.Business, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
	b, err := scanBusiness(row)
	if err != nil {
		return nil, lookupErr(err, "get business", id)
	}
	return &b, nil
}

func (s *Store) ListAvailableItems(ctx context.Context, businessID string) ([]catalog.Item, error) {
	const base = `SELECT i.id, i.business_id, i.name, i.description, i.category, i.price::float8, i.available
		FROM items i JOIN businesses b ON b.id = i.business_id
		WHERE i.available AND b.active`

	var (
		q    = base + ` ORDER BY b.name, i.name`
		args []any
	)
	if businessID != "" {
		q = base + ` AND i.business_id = $1 ORDER BY i.name`
		args = append(args, businessID)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		if hasCode(err, codeInvalidText) {
			return nil, nil
		}
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []catalog.Item
	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.ID, &it.BusinessID, &it.Name, &it.Description, &it.Category, &it.Price, &it.Available); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// InsertBusiness adds a business and returns its id.
func (s *Store) InsertBusiness(ctx context.Context, b *catalog.Business) (string, error) {
	settings, err := json.Marshal(b.Settings)
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	if b.Settings == nil {
		settings = []byte(`{}`)
	}
	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO businesses (name, category, description, address, phone, hours, tags, active, settings)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		b.Name, b.Category, b.Description, b.Address, b.Phone, b.Hours, textArray(b.Tags), b.Active, settings,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert business: %w", err)
	}
	return id, nil
}

// InsertItem adds an item and returns its id.
func (s *Store) InsertItem(ctx context.Context, it *catalog.Item) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO items (business_id, name, description, category, price, available)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		it.BusinessID, it.Name, it.Description, it.Category, it.Price, it.Available,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}
	return id, nil
}

func scanBusiness(row scannable) (catalog.Business, error) {
	var (
		b        catalog.Business
		settings []byte
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Category, &b.Description, &b.Address, &b.Phone, &b.Hours, &b.Tags, &b.Active, &settings); err != nil {
		return b, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &b.Settings); err != nil {
			return b, fmt.Errorf("decode business settings: %w", err)
		}
	}
	if len(b.Settings) == 0 {
		b.Settings = nil
	}
	return b, nil
}
