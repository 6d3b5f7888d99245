package auth

import "context"

// Role distinguishes the two identities the API serves: customers ordering
// food and staff managing the menu and orders.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	// CustomerID is the stable identifier the cart, orders, and loyalty
	// account of this caller are keyed by.
	CustomerID string
	Role       Role
}

// IsStaff reports whether the identity may use the staff-only operations.
func (i Identity) IsStaff() bool { return i.Role == RoleStaff }

// APIKeyInfo holds the identity data for a validated API key.
type APIKeyInfo struct {
	ID         string
	KeyHash    string
	Name       string
	Role       Role
	CustomerID string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
