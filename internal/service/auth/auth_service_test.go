package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
)

type staticDirectory struct {
	customers []models.Customer
	err       error
}

func (d staticDirectory) Customers(context.Context) ([]models.Customer, error) {
	return d.customers, d.err
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("bob-secret")
	require.NoError(t, err)

	dir := staticDirectory{customers: []models.Customer{
		{Name: "Alice", Password: "alice-pw"},
		{Name: "Bob", Password: hash},
		{Name: "Carol"},
	}}
	return NewService(config.AuthConfig{StorePassword: "open-sesame", TokenSecret: "test-secret"}, dir, nil)
}

func TestVerify_Store(t *testing.T) {
	svc := newTestService(t)

	identity, err := svc.Verify(context.Background(), "", "open-sesame")
	require.NoError(t, err)
	assert.True(t, identity.IsStore())

	_, err = svc.Verify(context.Background(), "", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerify_Customers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	identity, err := svc.Verify(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	assert.Equal(t, models.Identity{Type: models.IdentityCustomer, CustomerName: "Alice"}, identity)

	identity, err = svc.Verify(ctx, "Bob", "bob-secret")
	require.NoError(t, err)
	assert.Equal(t, "Bob", identity.CustomerName)

	for _, tc := range []struct{ name, password string }{
		{"Bob", "alice-pw"},
		{"Carol", "anything"},
		{"Dave", "alice-pw"},
		{"Alice", ""},
		{"Alice", "open-sesame"},
	} {
		_, err := svc.Verify(ctx, tc.name, tc.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.name)
	}
}

func TestVerify_DirectoryFailure(t *testing.T) {
	svc := NewService(config.AuthConfig{StorePassword: "x", TokenSecret: "y"}, staticDirectory{err: errors.New("offline")}, nil)
	_, err := svc.Verify(context.Background(), "Alice", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginAndParse(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now()
	svc.now = func() time.Time { return issued }

	token, err := svc.Login(context.Background(), "Alice", "alice-pw")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.WithinDuration(t, issued.Add(24*time.Hour), token.ExpiresAt, time.Second)

	identity, err := svc.Parse(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", identity.CustomerName)
	assert.Equal(t, models.IdentityCustomer, identity.Type)
}

func TestParse_Rejects(t *testing.T) {
	svc := newTestService(t)

	svc.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }
	expired, err := svc.Issue(models.Identity{Type: models.IdentityStore})
	require.NoError(t, err)
	_, err = svc.Parse(expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(config.AuthConfig{TokenSecret: "another-secret"}, staticDirectory{}, nil)
	foreign, err := other.Issue(models.Identity{Type: models.IdentityStore})
	require.NoError(t, err)
	_, err = svc.Parse(foreign.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
