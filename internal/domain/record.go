package domain

import "time"

// Product is a record in the product catalogue.
type Product struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Stock          int     `json:"stock"`
	ReturnDiscount float64 `json:"return_discount"`
}

// ProductUpdate carries the fields to change on a product. Nil fields are left untouched.
type ProductUpdate struct {
	Name           *string
	Price          *float64
	Stock          *int
	ReturnDiscount *float64
}

// Empty reports whether the update changes nothing.
func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil && u.Stock == nil && u.ReturnDiscount == nil
}

// User is a registered customer of the swarm.
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Company    string    `json:"company"`
	Email      string    `json:"email"`
	OnVacation bool      `json:"on_vacation"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	// DefaultStock is the stock assigned when none is given.
	DefaultStock = 0
	// DefaultReturnDiscount is the return discount percentage assigned when none is given.
	DefaultReturnDiscount = 10.0
)
