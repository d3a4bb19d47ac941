// Package store is the durable collaborator behind the relay: party roster
// and call history. Live routing never reads it; the router only pushes
// status and record updates into it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dialoq/hotline/internal/domain"
)

var (
	ErrPartyNotFound = errors.New("party not found")
	ErrCallNotFound  = errors.New("call not found")
	ErrDuplicateID   = errors.New("customer id already exists")
)

// Store is the narrow contract the rest of the system consumes.
type Store interface {
	FindParty(ctx context.Context, id domain.CustomerID) (*domain.Party, error)
	CreateParty(ctx context.Context, p *domain.Party) (*domain.Party, error)
	SetStatus(ctx context.Context, id domain.CustomerID, status domain.Status) (*domain.Party, error)
	ListParties(ctx context.Context) ([]*domain.Party, error)
	ListOperators(ctx context.Context) ([]*domain.Party, error)
	ListCustomers(ctx context.Context) ([]*domain.Party, error)

	CreateCall(ctx context.Context, caller, receiver domain.CustomerID, status domain.CallStatus) (*domain.CallRecord, error)
	GetCall(ctx context.Context, id int) (*domain.CallRecord, error)
	UpdateCall(ctx context.Context, id int, status domain.CallStatus, endedAt *time.Time, duration int) (*domain.CallRecord, error)
	ListCallsForParty(ctx context.Context, id domain.CustomerID) ([]*domain.CallRecord, error)
	ActiveCallForParty(ctx context.Context, id domain.CustomerID) (*domain.CallRecord, error)

	Close() error
}

type seedParty struct {
	customerID domain.CustomerID
	name       string
	avatar     string
	operator   bool
}

// seedRoster is the demo roster loaded into a fresh store.
var seedRoster = []seedParty{
	{"OPER001", "Operator One", "O1", true},
	{"OPER002", "Operator Two", "O2", true},
	{"CUST001", "John Doe", "JD", false},
	{"CUST002", "Sarah Miller", "SM", false},
	{"CUST003", "Michael Johnson", "MJ", false},
}
