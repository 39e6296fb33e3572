package model

type Customer struct {
	ID     int     `db:"id"`
	Name   string  `db:"name"`
	Orders []Order `rel:"has_many,foreign_key:customerId,reference:customer"`
}

type Order struct {
	ID         int    `db:"id"`
	CustomerID int    `db:"customerId"`
	Items      []Item `rel:"has_many,foreign_key:orderId,reference:order"`
}

type Item struct {
	ID      int    `db:"id"`
	OrderID int    `db:"orderId"`
	Sku     string `db:"sku"`
	Qty     int    `db:"qty"`
}
