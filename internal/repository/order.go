package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hstoff/storefront/internal/models"
	"github.com/hstoff/storefront/internal/repository/postgres"
)

const pgErrUniqueViolationCode = "23505"

const (
	orderColumns = `id, number, first_name, last_name, email, phone, street, house_number, zip, city, country,
						subtotal, shipping, total, payment_method, payment_status, order_status,
						paypal_order_id, invoice_path, tracking_number, customer_notes, notification_failed,
						fingerprint, created_at, updated_at`

	insertOrderQuery = `
						INSERT INTO orders (id, number, first_name, last_name, email, phone, street, house_number, zip, city, country,
							subtotal, shipping, total, payment_method, payment_status, order_status, customer_notes, fingerprint)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
						RETURNING created_at, updated_at
`
	insertOrderItemQuery = `
						INSERT INTO order_items (order_id, position, product_id, name, price, quantity, image_url)
						VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	selectOrderByNumberQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE number = $1
`
	selectOrderByFingerprintQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE fingerprint = $1 AND created_at > $2
						ORDER BY created_at DESC
						LIMIT 1
`
	selectAwaitingPaymentQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE order_status = 'awaiting_payment' AND updated_at < $1
						ORDER BY created_at
`
	selectItemsQuery = `
						SELECT order_id, product_id, name, price, quantity, image_url FROM order_items
						WHERE order_id = ANY($1)
						ORDER BY order_id, position
`
	updateOrderStatusQuery = `
						UPDATE orders
						SET order_status = COALESCE($2, order_status),
							payment_status = COALESCE($3, payment_status),
							tracking_number = COALESCE($4, tracking_number),
							updated_at = now()
						WHERE number = $1
						RETURNING ` + orderColumns + `
`
	updateInvoicePathQuery = `
						UPDATE orders SET invoice_path = $2, updated_at = now() WHERE number = $1
`
	updatePayPalOrderQuery = `
						UPDATE orders SET paypal_order_id = $2, updated_at = now() WHERE number = $1
`
	updateNotificationFailedQuery = `
						UPDATE orders SET notification_failed = TRUE, updated_at = now() WHERE number = $1
`
	countOrdersQuery = `SELECT count(*) FROM orders`
)

// OrderRepository is the durable order ledger backed by postgres
type OrderRepository struct {
	db     *postgres.DB
	window time.Duration
}

// NewOrderRepository creates new OrderRepository instance. window is the
// idempotency window for duplicate submissions.
func NewOrderRepository(db *postgres.DB, window time.Duration) *OrderRepository {
	return &OrderRepository{db: db, window: window}
}

// CreateOrder persists order and its line items in one transaction. When an
// order with the same fingerprint was created within the idempotency window,
// the existing order is returned together with models.ErrDuplicateOrder.
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	tx, err := or.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	existing := models.Order{}
	err = scanOrder(tx.QueryRow(ctx, selectOrderByFingerprintQuery, order.Fingerprint, time.Now().Add(-or.window)), &existing)
	if err == nil {
		if err := or.loadItems(ctx, []*models.Order{&existing}); err != nil {
			return nil, err
		}
		return &existing, models.ErrDuplicateOrder
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	err = tx.QueryRow(ctx, insertOrderQuery,
		order.ID, order.OrderNumber,
		order.Customer.FirstName, order.Customer.LastName, order.Customer.Email, order.Customer.Phone,
		order.Customer.Street, order.Customer.HouseNumber, order.Customer.Zip, order.Customer.City, order.Customer.Country,
		order.Subtotal, order.Shipping, order.Total,
		order.PaymentMethod, order.PaymentStatus, order.OrderStatus,
		order.CustomerNotes, order.Fingerprint,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		// the fingerprint window was already checked above, so a unique
		// violation here is a collision on the generated order number
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrOrderNumberTaken
		}
		return nil, err
	}

	for i, item := range order.Items {
		if _, err := tx.Exec(ctx, insertOrderItemQuery, order.ID, i, item.ProductID, item.Name, item.Price, item.Quantity, item.ImageURL); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrderByNumber returns order with its line items
func (or *OrderRepository) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	order := models.Order{}
	err := scanOrder(or.db.QueryRow(ctx, selectOrderByNumberQuery, number), &order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	if err := or.loadItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateOrderStatus applies patch to the mutable order columns. Reachability
// of the requested statuses is checked by the service layer under the
// per-order lock.
func (or *OrderRepository) UpdateOrderStatus(ctx context.Context, number string, patch models.OrderPatch) (*models.Order, error) {
	order := models.Order{}
	err := scanOrder(or.db.QueryRow(ctx, updateOrderStatusQuery, number, patch.OrderStatus, patch.PaymentStatus, patch.TrackingNumber), &order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	if err := or.loadItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}

	return &order, nil
}

// SetInvoicePath stores the path of the rendered invoice document
func (or *OrderRepository) SetInvoicePath(ctx context.Context, number string, path string) error {
	return or.exec(ctx, updateInvoicePathQuery, number, path)
}

// SetPayPalOrder stores the processor-assigned authorization identifier
func (or *OrderRepository) SetPayPalOrder(ctx context.Context, number string, providerOrderID string) error {
	return or.exec(ctx, updatePayPalOrderQuery, number, providerOrderID)
}

// MarkNotificationFailed flags the order for manual notification follow-up
func (or *OrderRepository) MarkNotificationFailed(ctx context.Context, number string) error {
	cmd, err := or.db.Exec(ctx, updateNotificationFailedQuery, number)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

// ListOrders returns a page of orders matching filter, newest first, and the
// total number of matches.
func (or *OrderRepository) ListOrders(ctx context.Context, filter models.OrderFilter, page, limit int) ([]models.Order, int, error) {
	where, args := buildOrderFilter(filter)

	var total int
	if err := or.db.QueryRow(ctx, countOrdersQuery+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := or.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	refs := make([]*models.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := or.loadItems(ctx, refs); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListAwaitingPayment returns orders stuck in awaiting_payment that were last
// touched before cutoff. Used by the payment reconciliation pass.
func (or *OrderRepository) ListAwaitingPayment(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, selectAwaitingPaymentQuery, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	refs := make([]*models.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := or.loadItems(ctx, refs); err != nil {
		return nil, err
	}

	return orders, nil
}

func (or *OrderRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := or.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

// loadItems fetches the line items for all given orders with a single query
func (or *OrderRepository) loadItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*models.Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	rows, err := or.db.Query(ctx, selectItemsQuery, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		item := models.OrderItem{}
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.ImageURL); err != nil {
			return err
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	return rows.Err()
}

func buildOrderFilter(filter models.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.OrderStatus != "" {
		args = append(args, filter.OrderStatus)
		conds = append(conds, fmt.Sprintf("order_status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		conds = append(conds, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		order := models.Order{}
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row pgx.Row, order *models.Order) error {
	return row.Scan(
		&order.ID, &order.OrderNumber,
		&order.Customer.FirstName, &order.Customer.LastName, &order.Customer.Email, &order.Customer.Phone,
		&order.Customer.Street, &order.Customer.HouseNumber, &order.Customer.Zip, &order.Customer.City, &order.Customer.Country,
		&order.Subtotal, &order.Shipping, &order.Total,
		&order.PaymentMethod, &order.PaymentStatus, &order.OrderStatus,
		&order.PayPalOrderID, &order.InvoicePath, &order.TrackingNumber, &order.CustomerNotes, &order.NotificationFailed,
		&order.Fingerprint, &order.CreatedAt, &order.UpdatedAt,
	)
}
