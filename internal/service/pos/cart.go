package pos

import (
	"errors"
	"strings"
	"sync"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrItemNotFound    = errors.New("item not in cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNegativeRate    = errors.New("rate must not be negative")
)

// Totals summarizes a cart.
type Totals struct {
	Lines        int     `json:"lines"`
	Quantity     int     `json:"quantity"`
	GrandTotal   float64 `json:"grandTotal"`
	Cost         float64 `json:"cost"`
	ProfitMargin float64 `json:"profitMargin"`
}

// Cart is the in-progress sale of one terminal. Lines are unique by name,
// compared case-insensitively, and keep insertion order.
type Cart struct {
	mu    sync.Mutex
	items []models.CartItem
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// Add puts quantity units of product in the cart, merging with an existing line
// of the same name. A zero quantity adds one unit.
func (c *Cart) Add(product models.Product, quantity int) (models.CartItem, error) {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return models.CartItem{}, ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(product.Name); i >= 0 {
		c.items[i].Quantity += quantity
		return c.items[i], nil
	}

	item := models.CartItem{
		Name:         strings.TrimSpace(product.Name),
		Rate:         product.Rate,
		Quantity:     quantity,
		PurchaseCost: product.Cost(),
		Stock:        product.Stock,
	}
	c.items = append(c.items, item)
	return item, nil
}

// SetQuantity changes a line's quantity. Zero or less removes the line.
func (c *Cart) SetQuantity(name string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(name)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity <= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
		return nil
	}
	c.items[i].Quantity = quantity
	return nil
}

// OverrideRate sets the selling rate of a line for this cart only.
func (c *Cart) OverrideRate(name string, rate float64) error {
	if rate < 0 {
		return ErrNegativeRate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(name)
	if i < 0 {
		return ErrItemNotFound
	}
	c.items[i].Rate = rate
	return nil
}

// Remove drops a line.
func (c *Cart) Remove(name string) error {
	return c.SetQuantity(name, 0)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartItem(nil), c.items...)
}

// Totals computes the cart summary.
func (c *Cart) Totals() Totals {
	return totalsOf(c.Items())
}

// take returns the lines and empties the cart in one step.
func (c *Cart) take() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.items
	c.items = nil
	return items
}

// restore puts back lines taken by a checkout that failed.
func (c *Cart) restore(items []models.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		c.items = items
		return
	}
	c.items = append(items, c.items...)
}

func (c *Cart) indexOf(name string) int {
	name = strings.TrimSpace(name)
	for i, item := range c.items {
		if strings.EqualFold(item.Name, name) {
			return i
		}
	}
	return -1
}

func totalsOf(items []models.CartItem) Totals {
	var t Totals
	for _, item := range items {
		t.Lines++
		t.Quantity += item.Quantity
		t.GrandTotal += item.LineTotal()
		t.Cost += item.CostTotal()
	}
	t.GrandTotal = models.RoundMoney(t.GrandTotal)
	t.Cost = models.RoundMoney(t.Cost)
	t.ProfitMargin = models.RoundMoney(t.GrandTotal - t.Cost)
	return t
}
