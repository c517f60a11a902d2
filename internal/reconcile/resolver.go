package reconcile

import (
	"context"
	"errors"
	"strings"

	"ledgersync/internal/completion"
	"ledgersync/internal/store"
)

// Outcome is the result of resolving a Canvas login.
type Outcome int

const (
	OutcomeResolved Outcome = iota
	OutcomeNotFound
	// OutcomeExcluded marks logins without an "@" (test students, service accounts).
	// They are dropped without being reported.
	OutcomeExcluded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Resolver maps Canvas logins to ledger user ids.
type Resolver struct {
	ledger store.Ledger
}

// NewResolver creates a resolver backed by the ledger.
func NewResolver(ledger store.Ledger) *Resolver {
	return &Resolver{ledger: ledger}
}

// Resolve looks up the user id for login. A non-nil error means the lookup itself failed.
func (r *Resolver) Resolve(ctx context.Context, login string) (int64, Outcome, error) {
	login = completion.NormalizeLogin(login)
	if !strings.Contains(login, "@") {
		return 0, OutcomeExcluded, nil
	}

	id, err := r.ledger.UserIDByEmail(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, OutcomeNotFound, nil
		}
		return 0, OutcomeNotFound, err
	}
	return id, OutcomeResolved, nil
}
