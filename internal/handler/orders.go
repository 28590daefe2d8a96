package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/service"
)

const maxWebhookSize = 64 << 10

type addressPayload struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

type orderItemRequest struct {
	Manga    string `json:"manga"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress addressPayload     `json:"shippingAddress"`
	TotalAmount     *float64           `json:"totalAmount"`
}

type orderItemResponse struct {
	Manga    string  `json:"manga"`
	Title    string  `json:"title,omitempty"`
	Image    string  `json:"image,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	User            string              `json:"user"`
	Items           []orderItemResponse `json:"items"`
	TotalAmount     float64             `json:"totalAmount"`
	ShippingAddress addressPayload      `json:"shippingAddress"`
	PaymentStatus   string              `json:"paymentStatus"`
	OrderStatus     string              `json:"orderStatus"`
	PaymentIntentID string              `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

type createOrderResponse struct {
	Order        orderResponse `json:"order"`
	ClientSecret string        `json:"clientSecret"`
}

func toOrderResponse(o model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			Manga:    it.MangaID,
			Title:    it.Title,
			Image:    it.ImageURL,
			Quantity: it.Quantity,
			Price:    model.AmountFromCents(it.PriceCents),
		})
	}
	a := o.ShippingAddress
	return orderResponse{
		ID:              o.ID,
		User:            o.UserID,
		Items:           items,
		TotalAmount:     model.AmountFromCents(o.TotalCents),
		ShippingAddress: addressPayload(a),
		PaymentStatus:   string(o.PaymentStatus),
		OrderStatus:     string(o.OrderStatus),
		PaymentIntentID: o.PaymentIntentID,
		CreatedAt:       o.CreatedAt,
	}
}

// CreateOrder создаёт заказ и платёжное намерение для него.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := service.OrderInput{
		Items:           make([]service.OrderItemInput, 0, len(req.Items)),
		ShippingAddress: model.ShippingAddress(req.ShippingAddress),
		TotalCents:      centsPtr(req.TotalAmount),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.OrderItemInput{MangaID: it.Manga, Quantity: it.Quantity})
	}

	res, err := h.service.CreateOrder(r.Context(), userID, in)
	if err != nil {
		h.handleError(w, r, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:        toOrderResponse(*res.Order),
		ClientSecret: res.ClientSecret,
	})
}

// MyOrders возвращает заказы текущего пользователя.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	orders, err := h.service.MyOrders(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, "get orders", err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	OrderStatus string `json:"orderStatus"`
}

// UpdateOrderStatus меняет статус выполнения заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.OrderStatus)
	if err != nil {
		h.handleError(w, r, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*o))
}

// PaymentWebhook принимает события платёжной системы. Подпись проверяется по исходному телу запроса.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.HandlePaymentWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.handleError(w, r, "payment webhook", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
