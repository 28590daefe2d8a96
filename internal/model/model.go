// Package model содержит доменные сущности магазина Ink Panels.
package model

import (
	"math"
	"time"
)

// Role описывает уровень доступа пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного покупателя.
type User struct {
	ID            string
	Email         string
	Username      string
	PasswordHash  []byte
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Wishlist      []string
}

// Manga описывает позицию каталога. Цены хранятся в центах.
type Manga struct {
	ID                 string
	Title              string
	Author             string
	Description        string
	PriceCents         int64
	OriginalPriceCents *int64
	ImageURL           string
	ImageKey           string
	Volumes            int
	Genre              []string
	Rating             float64
	ReviewCount        int
	Stock              int
	Badges             []string
	IsNewRelease       bool
	CreatedAt          time.Time
}

// MangaPatch содержит частичное обновление позиции каталога: nil-поля не меняются.
type MangaPatch struct {
	Title              *string
	Author             *string
	Description        *string
	PriceCents         *int64
	OriginalPriceCents *int64
	ImageURL           *string
	Volumes            *int
	Genre              *[]string
	Rating             *float64
	ReviewCount        *int
	Stock              *int
	Badges             *[]string
	IsNewRelease       *bool
}

// PaymentStatus описывает статус оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// OrderStatus описывает статус выполнения заказа.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid сообщает, является ли статус одним из известных.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem описывает строку заказа. Title и ImageURL заполняются при чтении из каталога.
type OrderItem struct {
	MangaID    string
	Title      string
	ImageURL   string
	Quantity   int
	PriceCents int64
}

// ShippingAddress содержит адрес доставки.
type ShippingAddress struct {
	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

// Order описывает заказ покупателя.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalCents      int64
	ShippingAddress ShippingAddress
	PaymentStatus   PaymentStatus
	OrderStatus     OrderStatus
	PaymentIntentID string
	CreatedAt       time.Time
}

// OTPVerification описывает выданный одноразовый код подтверждения email.
type OTPVerification struct {
	ID        string
	Email     string
	Purpose   string
	CodeHash  []byte
	Attempts  int
	Used      bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CentsFromAmount переводит сумму в долларах в центы с округлением.
// Значения вне диапазона int64 насыщаются, NaN даёт math.MinInt64.
func CentsFromAmount(amount float64) int64 {
	c := math.Round(amount * 100)
	switch {
	case math.IsNaN(c) || c <= math.MinInt64:
		return math.MinInt64
	case c >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(c)
}

// AmountFromCents переводит центы в доллары.
func AmountFromCents(cents int64) float64 {
	return float64(cents) / 100
}
