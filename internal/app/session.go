package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/cache"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/fetch"
	"github.com/mamadbah2/storefront/internal/kvstore"
	"github.com/mamadbah2/storefront/internal/scheduler"
	"github.com/mamadbah2/storefront/internal/service/orders"
	"github.com/mamadbah2/storefront/internal/service/pos"
)

// ErrNotSignedIn is returned by identity-scoped reads before login.
var ErrNotSignedIn = errors.New("terminal is not signed in")

// Session is one signed-in terminal: an isolated cache namespace, a cart and the
// identity. Its id is issued by the server and never chosen by the client.
type Session struct {
	id        string
	app       *App
	customers *cache.CustomerCache
	receipts  *cache.ReceiptsCache
	pending   *cache.PendingOrderCache
	lastView  *cache.LastViewCache
	token     *cache.AuthTokenCache
	cart      *pos.Cart
	logger    *zap.Logger

	lastSeen atomic.Int64

	mu       sync.RWMutex
	identity models.Identity
	signedIn bool
}

func newSession(a *App, id string) *Session {
	store := kvstore.Namespaced(a.store, "terminal:"+id)
	opts := a.cacheOptions()

	return &Session{
		id:        id,
		app:       a,
		customers: cache.NewCustomerCache(store, opts...),
		receipts:  cache.NewReceiptsCache(store, opts...),
		pending:   cache.NewPendingOrderCache(store, opts...),
		lastView:  cache.NewLastViewCache(store, opts...),
		token:     cache.NewAuthTokenCache(store, opts...),
		cart:      pos.NewCart(),
		logger:    a.logger.With(zap.String("session_id", id)),
	}
}

// ID is the server-issued session id.
func (s *Session) ID() string {
	return s.id
}

// LastSeen is the time of the last request on the session.
func (s *Session) LastSeen() time.Time {
	return time.UnixMilli(s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixMilli())
}

// Cart is the terminal's active cart.
func (s *Session) Cart() *pos.Cart {
	return s.cart
}

// Identity returns the signed-in identity.
func (s *Session) Identity() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.signedIn
}

// SignIn remembers the token and scopes the terminal's caches to its identity.
func (s *Session) SignIn(ctx context.Context, token models.AuthToken) error {
	if err := s.token.Save(ctx, token); err != nil {
		s.logger.Warn("failed to persist auth token", zap.Error(err))
	}
	return s.Adopt(token.Identity)
}

// Adopt switches the session to identity. Switching identity empties the cart
// and re-registers the session refresh domains.
func (s *Session) Adopt(identity models.Identity) error {
	s.mu.Lock()
	same := s.signedIn && s.identity.Type == identity.Type && s.identity.Owner() == identity.Owner()
	if same {
		s.mu.Unlock()
		return nil
	}
	s.identity = identity
	s.signedIn = true
	s.mu.Unlock()

	s.cart.Clear()
	return s.registerDomains(identity)
}

// StoredToken returns the token remembered by the terminal when it is still valid.
func (s *Session) StoredToken(ctx context.Context) (models.AuthToken, bool) {
	token, ok := s.token.Load(ctx)
	if !ok || !token.ExpiresAt.After(s.app.clock()) {
		return models.AuthToken{}, false
	}
	return token, true
}

// SignOut forgets the identity, the token and the cart.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.identity = models.Identity{}
	s.signedIn = false
	s.mu.Unlock()

	s.cart.Clear()
	if err := s.token.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear auth token", zap.Error(err))
	}
	for _, name := range s.domainNames() {
		s.app.refresh.Unregister(name)
	}
}

// close signs out and removes every record of the session namespace.
func (s *Session) close(ctx context.Context) {
	s.SignOut(ctx)
	clears := []func(context.Context) error{s.customers.Clear, s.receipts.Clear, s.pending.Clear, s.lastView.Clear}
	for _, fn := range clears {
		if err := fn(ctx); err != nil {
			s.logger.Warn("failed to clear session cache", zap.Error(err))
		}
	}
}

// Customers serves the customers visible to the signed-in identity.
func (s *Session) Customers(ctx context.Context) ([]models.Customer, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	bound := s.customers.For(identity.Owner())
	return readThrough[[]models.Customer](ctx, s.app, s.domain("customers"), bound, func(ctx context.Context, opts fetch.Options) ([]models.Customer, error) {
		return s.app.catalog.Customers(ctx, identity, bound, opts)
	})
}

// Receipts serves the receipts visible to the signed-in identity.
func (s *Session) Receipts(ctx context.Context) ([]models.Receipt, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	bound := s.receipts.For(identity.Owner())
	return readThrough[[]models.Receipt](ctx, s.app, s.domain("receipts"), bound, func(ctx context.Context, opts fetch.Options) ([]models.Receipt, error) {
		return s.app.catalog.Receipts(ctx, identity, bound, opts)
	})
}

// PendingOrders serves the pending orders visible to the signed-in identity.
func (s *Session) PendingOrders(ctx context.Context) ([]models.PendingOrder, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	bound := s.pending.For(identity.Owner())
	return readThrough[[]models.PendingOrder](ctx, s.app, s.domain("orders"), bound, func(ctx context.Context, opts fetch.Options) ([]models.PendingOrder, error) {
		return s.app.catalog.PendingOrders(ctx, identity, bound, opts)
	})
}

// ReceiptStore is the identity-bound local receipts list. It is loaded first
// so payment updates can locate receipts.
func (s *Session) ReceiptStore(ctx context.Context) (orders.ReceiptStore, error) {
	if _, err := s.Receipts(ctx); err != nil {
		return nil, err
	}
	identity, _ := s.Identity()
	return s.receipts.For(identity.Owner()), nil
}

// PendingStore is the identity-bound local pending-order list.
func (s *Session) PendingStore(ctx context.Context) (orders.PendingStore, error) {
	if _, err := s.PendingOrders(ctx); err != nil {
		return nil, err
	}
	identity, _ := s.Identity()
	return s.pending.For(identity.Owner()), nil
}

// LastView returns the last product view of the terminal.
func (s *Session) LastView(ctx context.Context) (models.ProductView, bool) {
	return s.lastView.Load(ctx)
}

// SaveLastView remembers the product view. Failures are logged only.
func (s *Session) SaveLastView(ctx context.Context, view models.ProductView) {
	if err := s.lastView.Save(ctx, view); err != nil {
		s.logger.Debug("failed to persist product view", zap.Error(err))
	}
}

// Refresh runs the shared product cycle and the session's own cycles.
func (s *Session) Refresh(ctx context.Context) error {
	names := []string{DomainProducts}
	if _, ok := s.Identity(); ok {
		names = append(names, s.domainNames()...)
	}

	var errs []error
	for _, name := range names {
		if err := s.app.refresh.Refresh(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) requireIdentity() (models.Identity, error) {
	identity, ok := s.Identity()
	if !ok {
		return models.Identity{}, ErrNotSignedIn
	}
	return identity, nil
}

func (s *Session) registerDomains(identity models.Identity) error {
	owner := identity.Owner()
	silent := s.app.silent

	customers := s.customers.For(owner)
	receipts := s.receipts.For(owner)
	pending := s.pending.For(owner)

	domains := []scheduler.Domain{
		{
			Name:    s.domain("customers"),
			Flush:   customers.Clear,
			Fetch:   func(ctx context.Context) error { _, err := s.app.catalog.Customers(ctx, identity, customers, silent()); return err },
			IsStale: func(ctx context.Context) bool { return customers.IsStale(ctx, cache.StalenessWindow) },
		},
		{
			Name:    s.domain("receipts"),
			Flush:   receipts.Clear,
			Fetch:   func(ctx context.Context) error { _, err := s.app.catalog.Receipts(ctx, identity, receipts, silent()); return err },
			IsStale: func(ctx context.Context) bool { return receipts.IsStale(ctx, cache.StalenessWindow) },
		},
		{
			Name:    s.domain("orders"),
			Flush:   pending.Clear,
			Fetch:   func(ctx context.Context) error { _, err := s.app.catalog.PendingOrders(ctx, identity, pending, silent()); return err },
			IsStale: func(ctx context.Context) bool { return pending.IsStale(ctx, cache.StalenessWindow) },
		},
	}

	for _, d := range domains {
		if err := s.app.refresh.Register(d); err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return nil
}

func (s *Session) domainNames() []string {
	return []string{s.domain("customers"), s.domain("receipts"), s.domain("orders")}
}

func (s *Session) domain(kind string) string {
	return kind + ":" + s.id
}
