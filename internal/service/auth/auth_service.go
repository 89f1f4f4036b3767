package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
)

// TokenTTL is how long a login stays valid.
const TokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// CustomerDirectory lists the store's customers.
type CustomerDirectory interface {
	Customers(ctx context.Context) ([]models.Customer, error)
}

type claims struct {
	Type         models.IdentityType `json:"type"`
	CustomerName string              `json:"customerName,omitempty"`
	jwt.RegisteredClaims
}

// Service verifies passwords and issues session tokens.
type Service struct {
	storePassword string
	secret        []byte
	directory     CustomerDirectory
	now           func() time.Time
	logger        *zap.Logger
}

// NewService wires the auth service.
func NewService(cfg config.AuthConfig, directory CustomerDirectory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		storePassword: cfg.StorePassword,
		secret:        []byte(cfg.TokenSecret),
		directory:     directory,
		now:           time.Now,
		logger:        logger,
	}
}

// Verify resolves a password to an identity. Without a customer name the
// password is checked against the store password; otherwise against that
// customer's password, stored either in plain text or as a bcrypt hash.
func (s *Service) Verify(ctx context.Context, customerName, password string) (models.Identity, error) {
	customerName = strings.TrimSpace(customerName)
	if password == "" {
		return models.Identity{}, ErrInvalidCredentials
	}

	if customerName == "" {
		if !equalSecret(password, s.storePassword) {
			return models.Identity{}, ErrInvalidCredentials
		}
		return models.Identity{Type: models.IdentityStore}, nil
	}

	customers, err := s.directory.Customers(ctx)
	if err != nil {
		return models.Identity{}, fmt.Errorf("load customers: %w", err)
	}
	customer, ok := models.FindCustomer(customers, customerName)
	if !ok || !checkPassword(customer.Password, password) {
		s.logger.Info("customer login rejected", zap.String("customer", customerName))
		return models.Identity{}, ErrInvalidCredentials
	}

	return models.Identity{Type: models.IdentityCustomer, CustomerName: customer.Name}, nil
}

// Login verifies the credentials and issues a token.
func (s *Service) Login(ctx context.Context, customerName, password string) (models.AuthToken, error) {
	identity, err := s.Verify(ctx, customerName, password)
	if err != nil {
		return models.AuthToken{}, err
	}
	return s.Issue(identity)
}

// Issue signs a token for identity valid for TokenTTL.
func (s *Service) Issue(identity models.Identity) (models.AuthToken, error) {
	issued := s.now()
	expires := issued.Add(TokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Type:         identity.Type,
		CustomerName: identity.CustomerName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Owner(),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return models.AuthToken{}, fmt.Errorf("sign token: %w", err)
	}

	return models.AuthToken{Token: signed, Identity: identity, ExpiresAt: expires}, nil
}

// Parse validates a token and returns its identity.
func (s *Service) Parse(raw string) (models.Identity, error) {
	parsed := &claims{}
	_, err := jwt.ParseWithClaims(raw, parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	switch parsed.Type {
	case models.IdentityStore:
		return models.Identity{Type: models.IdentityStore}, nil
	case models.IdentityCustomer:
		if parsed.CustomerName == "" {
			return models.Identity{}, ErrInvalidToken
		}
		return models.Identity{Type: models.IdentityCustomer, CustomerName: parsed.CustomerName}, nil
	default:
		return models.Identity{}, ErrInvalidToken
	}
}

// HashPassword produces the bcrypt form accepted in the customers sheet.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(stored, given string) bool {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return false
	}
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return equalSecret(given, stored)
}

func equalSecret(given, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}
