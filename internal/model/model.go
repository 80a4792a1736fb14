// Package model содержит доменные сущности маркетплейса.
package model

import "time"

// InitialBalance — баланс, начисляемый пользователю при регистрации.
const InitialBalance = 100.0

// User представляет зарегистрированного пользователя маркетплейса.
type User struct {
	ID              string
	Username        string
	Email           string
	Password        string // строка вида "salt:hex(sha512(password+salt))"
	Balance         float64
	ShippingAddress string
	PostalCode      string
}

// Product описывает товар, выставленный пользователем на продажу.
type Product struct {
	ID               string
	ProductName      string
	UserID           string
	OwnerEmail       string
	Price            float64
	Description      string
	LastModifiedDate time.Time
	Sold             bool
	BuyerID          *string
}

// Session описывает сессию авторизованного пользователя.
type Session struct {
	ID        string
	UserID    string
	IPAddress string
	Expiry    time.Time
}

// Expired сообщает, истёк ли срок действия сессии на момент now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.After(now)
}

// ProductPatch перечисляет изменяемые поля товара. Поле со значением nil
// означает «оставить как есть». Владелец, email владельца и идентификатор
// товара неизменяемы и в патче не представлены.
type ProductPatch struct {
	ProductName *string
	Description *string
	Price       *float64
}

// UserPatch перечисляет изменяемые поля профиля пользователя.
type UserPatch struct {
	Username        *string
	ShippingAddress *string
	PostalCode      *string
}
