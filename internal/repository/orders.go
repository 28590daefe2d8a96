package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ink-panels/internal/model"
)

const orderColumns = `id, user_id, total_cents, street, city, state, country, zip_code,
	payment_status, order_status, COALESCE(payment_intent_id, ''), created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o             model.Order
		paymentStatus string
		orderStatus   string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.TotalCents,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.Country, &o.ShippingAddress.ZipCode,
		&paymentStatus, &orderStatus, &o.PaymentIntentID, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.OrderStatus = model.OrderStatus(orderStatus)
	return &o, nil
}

// CreateOrder сохраняет заказ вместе со строками в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	var created *model.Order

	err := r.withRetry(ctx, func() error {
		return inTx(ctx, r.pool, func(tx pgx.Tx) error {
			a := o.ShippingAddress
			row := tx.QueryRow(ctx,
				`INSERT INTO orders (user_id, total_cents, street, city, state, country, zip_code,
				                     payment_status, order_status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				 RETURNING `+orderColumns,
				o.UserID, o.TotalCents, a.Street, a.City, a.State, a.Country, a.ZipCode,
				string(o.PaymentStatus), string(o.OrderStatus),
			)

			order, err := scanOrder(row)
			if err != nil {
				return fmt.Errorf("insert order: %w", err)
			}

			batch := &pgx.Batch{}
			for i, it := range o.Items {
				batch.Queue(
					`INSERT INTO order_items (order_id, position, manga_id, quantity, price_cents)
					 VALUES ($1, $2, $3, $4, $5)`,
					order.ID, i, it.MangaID, it.Quantity, it.PriceCents,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}

			order.Items = append([]model.OrderItem(nil), o.Items...)
			created = order
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AttachPaymentIntent сохраняет идентификатор платёжного намерения заказа.
func (r *PostgresRepository) AttachPaymentIntent(ctx context.Context, orderID, intentID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_intent_id = $2 WHERE id = $1`,
		orderID, intentID,
	)
	if err != nil {
		return fmt.Errorf("attach payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetPaymentStatus меняет статус оплаты заказа.
func (r *PostgresRepository) SetPaymentStatus(ctx context.Context, orderID string, status model.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2 WHERE id = $1`,
		orderID, string(status),
	)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkPaymentCompletedByIntent отмечает оплаченным заказ с указанным платёжным намерением.
// Возвращает false, если такого заказа нет.
func (r *PostgresRepository) MarkPaymentCompletedByIntent(ctx context.Context, intentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2 WHERE payment_intent_id = $1`,
		intentID, string(model.PaymentStatusCompleted),
	)
	if err != nil {
		return false, fmt.Errorf("mark payment completed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkPaymentCompletedByOrder отмечает оплаченным заказ, к которому намерение не было привязано.
// Заказ с другим намерением не меняется.
func (r *PostgresRepository) MarkPaymentCompletedByOrder(ctx context.Context, orderID, intentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET payment_status = $3, payment_intent_id = $2
		 WHERE id = $1 AND (payment_intent_id IS NULL OR payment_intent_id = $2)`,
		orderID, intentID, string(model.PaymentStatusCompleted),
	)
	if err != nil {
		return false, fmt.Errorf("mark payment completed by order: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	items, err := r.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// orderItems загружает строки заказов с названием и обложкой из каталога.
func (r *PostgresRepository) orderItems(ctx context.Context, orderIDs []string) (map[string][]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT oi.order_id, oi.manga_id, oi.quantity, oi.price_cents,
		        COALESCE(m.title, ''), COALESCE(m.image_url, '')
		 FROM order_items oi
		 LEFT JOIN manga m ON m.id = oi.manga_id
		 WHERE oi.order_id = ANY($1::uuid[])
		 ORDER BY oi.order_id, oi.position`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[string][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			it      model.OrderItem
		)
		if err := rows.Scan(&orderID, &it.MangaID, &it.Quantity, &it.PriceCents, &it.Title, &it.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		res[orderID] = append(res[orderID], it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateOrderStatus меняет статус выполнения заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders SET order_status = $2 WHERE id = $1 RETURNING `+orderColumns,
		id, string(status),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	items, err := r.orderItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}
