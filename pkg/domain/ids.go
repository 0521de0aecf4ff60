// Package domain holds typed identifiers shared across modules.
//
// IDs are distinct types over uuid.UUID so tenant, client, policy and user
// identifiers cannot be swapped at call sites. Parsing enforces the invariant
// that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "assura/pkg/domain-errors"
)

type (
	// TenantID identifies a brokerage (FSP) tenant.
	TenantID uuid.UUID
	// UserID identifies an authenticated user (agent, admin, scheduler actor).
	UserID uuid.UUID
	// ClientID identifies an insured client within a tenant.
	ClientID uuid.UUID
	// PolicyID identifies an insurance policy within a tenant.
	PolicyID uuid.UUID
	// EntryID identifies a commission ledger entry.
	EntryID uuid.UUID
)

func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id ClientID) String() string { return uuid.UUID(id).String() }
func (id PolicyID) String() string { return uuid.UUID(id).String() }
func (id EntryID) String() string  { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Text marshaling renders IDs as canonical UUID strings in JSON and keys.

func (id TenantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ClientID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PolicyID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EntryID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = TenantID(u)
	return err
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = UserID(u)
	return err
}

func (id *ClientID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ClientID(u)
	return err
}

func (id *PolicyID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = PolicyID(u)
	return err
}

func (id *EntryID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = EntryID(u)
	return err
}

// NewPolicyID returns a fresh random policy ID.
func NewPolicyID() PolicyID { return PolicyID(uuid.New()) }

// NewEntryID returns a fresh random ledger entry ID.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseTenantID validates raw input into a TenantID.
func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID(raw)
	return TenantID(u), err
}

// ParseUserID validates raw input into a UserID.
func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw)
	return UserID(u), err
}

// ParseClientID validates raw input into a ClientID.
func ParseClientID(raw string) (ClientID, error) {
	u, err := parseUUID(raw)
	return ClientID(u), err
}

// ParsePolicyID validates raw input into a PolicyID.
func ParsePolicyID(raw string) (PolicyID, error) {
	u, err := parseUUID(raw)
	return PolicyID(u), err
}
