package menu

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/store"
)

// Catalog reads menu items. GetByID returns (nil, nil) for unknown ids.
type Catalog interface {
	List(ctx context.Context) ([]domain.MenuItem, error)
	GetByID(ctx context.Context, id string) (*domain.MenuItem, error)
}

type PostgresRepository struct {
	store *store.Store
}

func NewPostgresRepository(s *store.Store) *PostgresRepository {
	return &PostgresRepository{store: s}
}

func (r *PostgresRepository) List(ctx context.Context) ([]domain.MenuItem, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, price, image, category
		FROM menu_items
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.MenuItem{}
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Image, &item.Category); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	item := &domain.MenuItem{}
	err = db.QueryRowContext(ctx, `
		SELECT id, name, description, price, image, category
		FROM menu_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Image, &item.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

// SeedIfEmpty inserts items when the menu has no rows and reports how many
// were inserted. The table lock keeps concurrent API instances from seeding
// twice.
func (r *PostgresRepository) SeedIfEmpty(ctx context.Context, items []domain.MenuItem) (int, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE menu_items IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM menu_items`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		// clock_timestamp advances within the transaction, keeping seed order.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO menu_items (id, name, description, price, image, category, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
		`, item.ID, item.Name, item.Description, item.Price, item.Image, item.Category)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}
