package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/payment"
	"github.com/mmeshcher/ink-panels/internal/repository"
	"github.com/mmeshcher/ink-panels/internal/validation"
)

// MaxItemQuantity ограничивает количество экземпляров в одной строке заказа.
const MaxItemQuantity = 1000

// OrderItemInput описывает строку нового заказа. Цена берётся из каталога.
type OrderItemInput struct {
	MangaID  string
	Quantity int
}

// OrderInput содержит данные нового заказа. TotalCents необязателен и сверяется с расчётной суммой.
type OrderInput struct {
	Items           []OrderItemInput
	ShippingAddress model.ShippingAddress
	TotalCents      *int64
}

// OrderResult содержит созданный заказ и секрет платёжного намерения для клиента.
type OrderResult struct {
	Order        *model.Order
	ClientSecret string
}

func (in OrderInput) validate() error {
	if len(in.Items) == 0 {
		return invalid("items", "order must contain at least one item")
	}
	for i, it := range in.Items {
		if !validation.IsUUID(it.MangaID) {
			return invalid("items", fmt.Sprintf("item %d: manga %q does not exist", i, it.MangaID))
		}
		if it.Quantity < 1 || it.Quantity > MaxItemQuantity {
			return invalid("items", fmt.Sprintf("item %d: quantity must be between 1 and %d", i, MaxItemQuantity))
		}
	}
	a := in.ShippingAddress
	if field := validation.MissingAddressField(a.Street, a.City, a.Country, a.ZipCode); field != "" {
		return invalid("shippingAddress."+field, "shippingAddress."+field+" is required")
	}
	return nil
}

// addLine прибавляет к сумме стоимость строки. Возвращает false при переполнении.
func addLine(total, priceCents int64, quantity int) (int64, bool) {
	if priceCents < 0 || (priceCents > 0 && int64(quantity) > math.MaxInt64/priceCents) {
		return 0, false
	}
	line := priceCents * int64(quantity)
	if line > math.MaxInt64-total {
		return 0, false
	}
	return total + line, true
}

// CreateOrder сохраняет заказ в статусе ожидания оплаты и создаёт для него платёжное намерение.
// Сумма заказа рассчитывается по ценам каталога.
func (s *Service) CreateOrder(ctx context.Context, userID string, in OrderInput) (*OrderResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if s.payments == nil {
		return nil, ErrPaymentsDisabled
	}

	ids := make([]string, 0, len(in.Items))
	seen := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		id := strings.ToLower(it.MangaID)
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	catalog, err := s.repo.GetMangaByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var total int64
	items := make([]model.OrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		m, ok := catalog[strings.ToLower(it.MangaID)]
		if !ok {
			return nil, invalid("items", fmt.Sprintf("item %d: manga %q does not exist", i, it.MangaID))
		}
		items = append(items, model.OrderItem{
			MangaID:    m.ID,
			Title:      m.Title,
			ImageURL:   m.ImageURL,
			Quantity:   it.Quantity,
			PriceCents: m.PriceCents,
		})
		if total, ok = addLine(total, m.PriceCents, it.Quantity); !ok {
			return nil, invalid("items", "order total is too large")
		}
	}

	if in.TotalCents != nil && *in.TotalCents != total {
		return nil, fmt.Errorf("%w: expected %.2f", ErrTotalMismatch, model.AmountFromCents(total))
	}

	order, err := s.repo.CreateOrder(ctx, &model.Order{
		UserID:          userID,
		Items:           items,
		TotalCents:      total,
		ShippingAddress: in.ShippingAddress,
		PaymentStatus:   model.PaymentStatusPending,
		OrderStatus:     model.OrderStatusProcessing,
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.payments.CreateIntent(ctx, payment.IntentRequest{
		AmountCents:    total,
		Currency:       s.currency,
		IdempotencyKey: "order-" + order.ID,
		Metadata: map[string]string{
			"order_id": order.ID,
			"user_id":  userID,
		},
	})
	if err != nil {
		s.logger.Error("payment intent creation failed", zap.String("order_id", order.ID), zap.Error(err))
		if markErr := s.repo.SetPaymentStatus(context.WithoutCancel(ctx), order.ID, model.PaymentStatusFailed); markErr != nil {
			s.logger.Error("failed to mark order payment failed", zap.String("order_id", order.ID), zap.Error(markErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrPayment, err)
	}

	if err := s.repo.AttachPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		s.logger.Error("failed to attach payment intent to order",
			zap.String("order_id", order.ID),
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, err
	}
	order.PaymentIntentID = intent.ID

	return &OrderResult{Order: order, ClientSecret: intent.ClientSecret}, nil
}

// MyOrders возвращает заказы пользователя, новые первыми.
func (s *Service) MyOrders(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := s.repo.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус выполнения заказа. Допускается переход между любыми статусами.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status string) (*model.Order, error) {
	st := model.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return nil, invalid("orderStatus", "orderStatus must be one of processing, shipped, delivered, cancelled")
	}
	if !validation.IsUUID(id) {
		return nil, repository.ErrOrderNotFound
	}
	return s.repo.UpdateOrderStatus(ctx, id, st)
}

// HandlePaymentWebhook проверяет подпись события и отмечает оплаченным заказ по успешному намерению.
// Если намерение не привязано ни к одному заказу, заказ ищется по order_id из метаданных.
// Повторная доставка события ничего не меняет.
func (s *Service) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.payments == nil {
		return ErrPaymentsDisabled
	}

	event, err := s.payments.ParseEvent(payload, signature)
	if err != nil {
		return err
	}

	if event.Type != payment.EventPaymentIntentSucceeded || event.PaymentIntentID == "" {
		s.logger.Debug("webhook event ignored", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}

	found, err := s.repo.MarkPaymentCompletedByIntent(ctx, event.PaymentIntentID)
	if err != nil {
		return err
	}
	if !found && validation.IsUUID(event.OrderID) {
		if found, err = s.repo.MarkPaymentCompletedByOrder(ctx, event.OrderID, event.PaymentIntentID); err != nil {
			return err
		}
		if found {
			s.logger.Info("payment intent reconciled by order id",
				zap.String("order_id", event.OrderID),
				zap.String("payment_intent_id", event.PaymentIntentID),
			)
		}
	}
	if !found {
		s.logger.Warn("payment succeeded for unknown intent",
			zap.String("event_id", event.ID),
			zap.String("payment_intent_id", event.PaymentIntentID),
		)
		return nil
	}

	s.logger.Info("order payment completed", zap.String("payment_intent_id", event.PaymentIntentID))
	return nil
}
