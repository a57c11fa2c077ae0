// Package store persists finished plans.
//
// Three backends implement [Store]:
//   - [MemoryStore]: in-process map for tests and ephemeral servers
//   - [FileStore]: one JSON file per plan, used by the CLI history
//   - [MongoStore]: MongoDB collection for multi-instance API deployments
//
// # Usage
//
//	st, err := store.NewFileStore("") // ~/.config/nacplan/plans/
//	if err != nil {
//	    return err
//	}
//	store.Prepare(p, time.Now())
//	if err := st.Save(ctx, p); err != nil {
//	    return err
//	}
//	summaries, err := st.List(ctx, store.ListOptions{Limit: 20})
//
// Plan ids are validated with [errors.ValidatePlanID] before they reach any
// backend, so a file store can never be steered outside its directory.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/plan"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Store is the interface for plan storage backends.
type Store interface {
	// Get retrieves a plan by ID.
	// Returns an error with code PLAN_NOT_FOUND if it doesn't exist.
	Get(ctx context.Context, id string) (*plan.Plan, error)

	// Save stores a plan, replacing any plan with the same ID.
	// The plan must have an ID (see [Prepare]).
	Save(ctx context.Context, p *plan.Plan) error

	// Delete removes a plan. Deleting a missing plan returns PLAN_NOT_FOUND.
	Delete(ctx context.Context, id string) error

	// List returns plan summaries, newest first.
	List(ctx context.Context, opts ListOptions) ([]plan.Summary, error)

	// Close releases resources held by the store.
	Close() error
}

// ListOptions controls List.
type ListOptions struct {
	// Limit is the maximum number of summaries; 0 means DefaultListLimit.
	Limit int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// NewID returns a fresh plan identifier.
func NewID() string {
	return uuid.NewString()
}

// Prepare assigns an ID and creation time to p when missing.
func Prepare(p *plan.Plan, now time.Time) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
	}
}

func notFound(id string) error {
	return errors.New(errors.ErrCodePlanNotFound, "plan %q not found", id)
}

func checkPlan(p *plan.Plan) error {
	if p == nil {
		return errors.New(errors.ErrCodeInvalidInput, "plan is nil")
	}
	return errors.ValidatePlanID(p.ID)
}

// newestFirst orders summaries by creation time, then ID.
func newestFirst(a, b plan.Summary) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
