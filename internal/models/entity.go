// Package models defines the REST resources served by the platform backend.
// Every resource is flat, keyed by a string id, and carries no client-side
// referential integrity beyond foreign-key-like string fields.
package models

// Entity is implemented by every resource kept in a store.
type Entity interface {
	GetID() string
}

// Role values for User.Role.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)
