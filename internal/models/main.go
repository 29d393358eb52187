// Package models defines the records kept by the TOTP keeper.
package models

import "time"

// SecretRecord is a TOTP shared secret stored under a unique identity.
type SecretRecord struct {
	// ID is the unique identifier assigned when the record is added.
	ID string `json:"id"`
	// Identity is the key the secret is stored under, usually an email address.
	Identity string `json:"identity"`
	// Secret is the normalized Base32 encoding of the shared key.
	Secret string `json:"secret"`
	// CreatedAt is the time the record was added.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the time the secret was last replaced.
	UpdatedAt time.Time `json:"updated_at"`
}
