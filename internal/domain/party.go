// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"time"
)

const (
	MaxCustomerIDLen = 36
	MaxNameLen       = 64
)

var (
	ErrCustomerIDEmpty   = errors.New("customer id empty")
	ErrCustomerIDTooLong = errors.New("customer id too long")
	ErrNameEmpty         = errors.New("name empty")
	ErrNameTooLong       = errors.New("name too long")
	ErrUnknownStatus     = errors.New("unknown status")
)

// CustomerID is the external identifier a party logs in with.
// Stable across reconnects, supplied by the client.
type CustomerID string

// Status is a party's availability as seen by everyone else.
type Status string

const (
	StatusOffline   Status = "offline"
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusCalling   Status = "calling"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOffline, StatusAvailable, StatusBusy, StatusCalling:
		return true
	}
	return false
}

// Role tags a live connection once, centrally, instead of re-deriving
// operator-ness inside every handler.
type Role int

const (
	RoleCaller Role = iota
	RoleOperator
)

func (r Role) String() string {
	if r == RoleOperator {
		return "operator"
	}
	return "caller"
}

// Party is a durable user row: a support operator or an ordinary customer.
type Party struct {
	ID         int        `json:"id"`
	CustomerID CustomerID `json:"customer_id"`
	Name       string     `json:"name"`
	Avatar     string     `json:"avatar"`
	Status     Status     `json:"status"`
	Operator   bool       `json:"operator"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewParty is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParty(customerID CustomerID, name, avatar string, operator bool) (*Party, error) {
	if len(customerID) == 0 {
		return nil, ErrCustomerIDEmpty
	}
	if len(customerID) > MaxCustomerIDLen {
		return nil, ErrCustomerIDTooLong
	}
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	return &Party{
		CustomerID: customerID,
		Name:       name,
		Avatar:     avatar,
		Status:     StatusOffline,
		Operator:   operator,
		CreatedAt:  time.Now(),
	}, nil
}

// Role returns the signaling role this party registers with.
func (p *Party) Role() Role {
	if p.Operator {
		return RoleOperator
	}
	return RoleCaller
}
