// Package directory provides the directory-service client used to find
// entities (accounts, groups) that changed since the last synchronisation.
package directory

import (
	"context"
	"time"
)

// Account is a user or project account as known by the directory service.
// Accounts are constructed fresh for every run from query results and are
// not persisted.
type Account struct {
	// VscID is the stable account identifier (the entry's CN).
	VscID string

	// Institute is the organisational partition the account belongs to.
	Institute string

	// Modified is the entry's last modification time.
	Modified time.Time
}

// Group is a directory-service group. Autogroup membership is maintained
// externally; this client only reads it.
type Group struct {
	CN         string
	MemberUIDs []string
}

// Client is the directory-service lookup contract. Lookup failures
// propagate to the caller, which decides the blast radius (institute-level
// abort for account searches, run-level abort for the group bootstrap).
type Client interface {
	// SearchGroups returns the groups matching the filter.
	SearchGroups(ctx context.Context, filter Filter) ([]Group, error)

	// SearchAccounts returns the accounts matching the filter. The full
	// result set is materialised before processing begins.
	SearchAccounts(ctx context.Context, filter Filter) ([]Account, error)

	// Close releases the underlying connection.
	Close() error
}
