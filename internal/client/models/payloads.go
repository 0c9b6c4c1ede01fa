package models

import "time"

type Home struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address,omitempty" validate:"max=250"`
}

type Category struct {
	Name  string `json:"name" validate:"required,max=80"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Icon  string `json:"icon,omitempty" validate:"max=40"`
}

type TodoCategory struct {
	Name  string `json:"name" validate:"required,max=80"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type Todo struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
	Done       bool       `json:"done"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
	CategoryID string     `json:"categoryId,omitempty"`
	Priority   int        `json:"priority" validate:"gte=0,lte=3"`
}

type Item struct {
	Name        string     `json:"name" validate:"required,max=120"`
	Description string     `json:"description,omitempty" validate:"max=2000"`
	Quantity    int        `json:"quantity" validate:"gte=0"`
	CategoryID  string     `json:"categoryId,omitempty"`
	LocationID  string     `json:"locationId,omitempty"`
	PurchasedAt *time.Time `json:"purchasedAt,omitempty"`
	Price       float64    `json:"price" validate:"gte=0"`
}

type Location struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description,omitempty" validate:"max=500"`
}
