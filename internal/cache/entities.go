package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/kvstore"
)

// Persisted key names. Terminals written by older clients use the same names, so
// they must not change.
const (
	KeyProducts         = "storeProductsCache"
	KeyProductsLastView = "storeProductsLastView"
	KeyCustomers        = "customersCache"
	KeyCustomersParsed  = "customersCache_parsed"
	KeyPendingOrder     = "pendingOrderCache"
	KeyReceipts         = "customerReceiptsCache"
	KeyAuthToken        = "authToken"
)

var (
	errEmptyList    = errors.New("list is empty")
	errNilList      = errors.New("list is missing")
	errUnnamedItem  = errors.New("entry without a name")
	errNegative     = errors.New("negative amount")
	errMissingToken = errors.New("token is missing")
)

// ProductCache holds the store-wide product list.
type ProductCache = TimestampedCache[[]models.Product]

// NewProductCache builds the product cache. Empty lists are rejected.
func NewProductCache(store kvstore.Store, opts ...Option) *ProductCache {
	return NewTimestampedCache[[]models.Product](store, KeyProducts, ValidateProducts, opts...)
}

// ValidateProducts is the shape check applied to product lists.
func ValidateProducts(products []models.Product) error {
	if len(products) == 0 {
		return errEmptyList
	}
	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			return errUnnamedItem
		}
		if p.Rate < 0 || p.Cost() < 0 || (p.Stock != nil && *p.Stock < 0) {
			return errNegative
		}
	}
	return nil
}

// ValidateCustomers is the shape check applied to customer lists.
func ValidateCustomers(customers []models.Customer) error {
	if len(customers) == 0 {
		return errEmptyList
	}
	for _, c := range customers {
		if strings.TrimSpace(c.Name) == "" {
			return errUnnamedItem
		}
	}
	return nil
}

// ValidateReceipts accepts empty lists; a customer may have no receipts yet.
func ValidateReceipts(receipts []models.Receipt) error {
	if receipts == nil {
		return errNilList
	}
	return nil
}

// ValidatePendingOrders accepts empty lists.
func ValidatePendingOrders(orders []models.PendingOrder) error {
	if orders == nil {
		return errNilList
	}
	return nil
}

// CustomerCache is the identity-scoped customer list plus a name index kept
// under customersCache_parsed.
type CustomerCache struct {
	*ScopedCache[[]models.Customer]
	parsed *TimestampedCache[map[string]models.Customer]
}

// NewCustomerCache builds the customer cache.
func NewCustomerCache(store kvstore.Store, opts ...Option) *CustomerCache {
	parsedOpts := append(append([]Option{}, opts...), WithTimestampKey(KeyCustomersParsed+timestampSuffix))
	return &CustomerCache{
		ScopedCache: NewScopedCache[[]models.Customer](store, KeyCustomers, ValidateCustomers, opts...),
		parsed:      NewTimestampedCache[map[string]models.Customer](store, KeyCustomersParsed, nil, parsedOpts...),
	}
}

// Save stores the list and refreshes the name index.
func (c *CustomerCache) Save(ctx context.Context, owner string, customers []models.Customer) error {
	if err := c.ScopedCache.Save(ctx, owner, customers); err != nil {
		return err
	}

	index := make(map[string]models.Customer, len(customers))
	for _, customer := range customers {
		index[normalizeName(customer.Name)] = customer
	}
	return c.parsed.Save(ctx, index)
}

// Lookup finds a customer by name when the cache belongs to owner.
func (c *CustomerCache) Lookup(ctx context.Context, owner, name string) (models.Customer, bool) {
	if _, ok := c.ScopedCache.Load(ctx, owner); !ok {
		return models.Customer{}, false
	}

	index, ok := c.parsed.Load(ctx)
	if !ok {
		customers, _ := c.ScopedCache.Load(ctx, owner)
		return models.FindCustomer(customers, name)
	}

	customer, ok := index[normalizeName(name)]
	return customer, ok
}

// Clear removes the list and the index.
func (c *CustomerCache) Clear(ctx context.Context) error {
	err := c.ScopedCache.Clear(ctx)
	if parsedErr := c.parsed.Clear(ctx); err == nil {
		err = parsedErr
	}
	return err
}

// For binds the customer cache to owner.
func (c *CustomerCache) For(owner string) *BoundCustomers {
	return &BoundCustomers{cache: c, owner: owner}
}

// BoundCustomers is a CustomerCache view for a single owner.
type BoundCustomers struct {
	cache *CustomerCache
	owner string
}

// Load returns the owner's customer list.
func (b *BoundCustomers) Load(ctx context.Context) ([]models.Customer, bool) {
	return b.cache.Load(ctx, b.owner)
}

// Save stores the owner's customer list and index.
func (b *BoundCustomers) Save(ctx context.Context, customers []models.Customer) error {
	return b.cache.Save(ctx, b.owner, customers)
}

// IsStale treats another owner's record as stale.
func (b *BoundCustomers) IsStale(ctx context.Context, maxAge time.Duration) bool {
	return b.cache.IsStaleFor(ctx, b.owner, maxAge)
}

// Clear removes the list and the index.
func (b *BoundCustomers) Clear(ctx context.Context) error {
	return b.cache.Clear(ctx)
}

// ReceiptsCache holds the receipts visible to the current identity.
type ReceiptsCache = ScopedCache[[]models.Receipt]

// NewReceiptsCache builds the receipts cache.
func NewReceiptsCache(store kvstore.Store, opts ...Option) *ReceiptsCache {
	return NewScopedCache[[]models.Receipt](store, KeyReceipts, ValidateReceipts, opts...)
}

// PendingOrderCache holds the pending orders visible to the current identity.
type PendingOrderCache = ScopedCache[[]models.PendingOrder]

// NewPendingOrderCache builds the pending-order cache.
func NewPendingOrderCache(store kvstore.Store, opts ...Option) *PendingOrderCache {
	return NewScopedCache[[]models.PendingOrder](store, KeyPendingOrder, ValidatePendingOrders, opts...)
}

// LastViewCache remembers the last product view of a terminal. It is never stale-checked.
type LastViewCache = TimestampedCache[models.ProductView]

// NewLastViewCache builds the last-view cache.
func NewLastViewCache(store kvstore.Store, opts ...Option) *LastViewCache {
	return NewTimestampedCache[models.ProductView](store, KeyProductsLastView, nil, opts...)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AuthTokenCache keeps the terminal's login token.
type AuthTokenCache = TimestampedCache[models.AuthToken]

// NewAuthTokenCache builds the token cache. Records without a token are misses.
func NewAuthTokenCache(store kvstore.Store, opts ...Option) *AuthTokenCache {
	return NewTimestampedCache[models.AuthToken](store, KeyAuthToken, func(t models.AuthToken) error {
		if t.Token == "" {
			return errMissingToken
		}
		return nil
	}, opts...)
}
