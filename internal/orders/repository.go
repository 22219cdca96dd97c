package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/store"
)

// Repository persists orders. Lookups return (nil, nil) when the order does
// not exist.
type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// TransitionStatus moves an order from one status to another only if it
	// is still in from. It returns ErrStatusConflict when the order has moved
	// on and (nil, nil) when it does not exist.
	TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

// ListFilter restricts List. An empty filter matches every order.
type ListFilter struct {
	Statuses []domain.OrderStatus
}

type PostgresRepository struct {
	store *store.Store
}

func NewPostgresRepository(s *store.Store) *PostgresRepository {
	return &PostgresRepository{store: s}
}

func (r *PostgresRepository) Create(ctx context.Context, order *domain.Order) error {
	db, err := r.store.DB(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, status, total, delivery_name, delivery_address, delivery_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, order.ID, order.Status, order.Total,
		order.DeliveryDetails.Name, order.DeliveryDetails.Address, order.DeliveryDetails.Phone,
		order.CreatedAt)
	if err != nil {
		return err
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, menu_item_id, name, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New().String(), order.ID, i, item.MenuItemID, item.Name, item.Price, item.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const orderColumns = `id, status, total, delivery_name, delivery_address, delivery_phone, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Status, &o.Total,
		&o.DeliveryDetails.Name, &o.DeliveryDetails.Address, &o.DeliveryDetails.Phone,
		&o.CreatedAt)
	o.CreatedAt = o.CreatedAt.UTC()
	return o, err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	order, err := scanOrder(db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	orders := []domain.Order{order}
	if err := r.loadItems(ctx, db, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(statuses))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, db, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// loadItems fills the items of orders with a single query.
func (r *PostgresRepository) loadItems(ctx context.Context, db *sql.DB, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i := range orders {
		orders[i].Items = []domain.OrderItem{}
		index[orders[i].ID] = i
		ids[i] = orders[i].ID
	}

	rows, err := db.QueryContext(ctx, `
		SELECT order_id, menu_item_id, name, price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.MenuItemID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return err
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}

	return rows.Err()
}

func (r *PostgresRepository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, from, to, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return nil, ErrStatusConflict
	}

	return r.GetByID(ctx, id)
}
