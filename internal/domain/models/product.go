package models

import "strings"

// Product is one row of the products sheet. Name is the display key; it is not
// guaranteed to be unique across the sheet.
type Product struct {
	Name         string   `json:"name"`
	Rate         float64  `json:"rate"`
	PurchaseCost *float64 `json:"purchaseCost,omitempty"`
	Stock        *int     `json:"stock,omitempty"`
}

// Cost returns the purchase cost, or zero when the sheet does not track it.
func (p Product) Cost() float64 {
	if p.PurchaseCost == nil {
		return 0
	}
	return *p.PurchaseCost
}

// Customer is one row of the customers sheet.
type Customer struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// ProductView remembers what a terminal was last looking at in the product list.
type ProductView struct {
	Query    string `json:"query"`
	Selected string `json:"selected,omitempty"`
}

// FindProduct returns the first product whose name matches case-insensitively.
func FindProduct(products []Product, name string) (Product, bool) {
	name = strings.TrimSpace(name)
	for _, p := range products {
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return p, true
		}
	}
	return Product{}, false
}

// FindCustomer returns the customer whose name matches case-insensitively.
func FindCustomer(customers []Customer, name string) (Customer, bool) {
	name = strings.TrimSpace(name)
	for _, c := range customers {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return c, true
		}
	}
	return Customer{}, false
}
