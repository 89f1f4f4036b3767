package models

import (
	"strings"
	"time"
)

// IdentityType discriminates who is operating a terminal.
type IdentityType string

const (
	IdentityStore    IdentityType = "store"
	IdentityCustomer IdentityType = "customer"
)

// Identity is the authenticated principal of a terminal session.
type Identity struct {
	Type         IdentityType `json:"type"`
	CustomerName string       `json:"customerName,omitempty"`
}

// Owner is the string stored alongside identity-scoped cache records.
func (i Identity) Owner() string {
	if i.Type == IdentityCustomer {
		return strings.TrimSpace(i.CustomerName)
	}
	return string(IdentityStore)
}

// IsStore reports whether the identity is the store operator.
func (i Identity) IsStore() bool {
	return i.Type == IdentityStore
}

// CanAccessCustomer reports whether the identity may read or write data of the named customer.
func (i Identity) CanAccessCustomer(name string) bool {
	if i.IsStore() {
		return true
	}
	return i.Type == IdentityCustomer && strings.EqualFold(strings.TrimSpace(i.CustomerName), strings.TrimSpace(name))
}

// AuthToken is the signed session token handed out at login.
type AuthToken struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expiresAt"`
}
