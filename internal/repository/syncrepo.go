// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/healthsync/internal/model"
)

// SyncRepository applies reconciliation plans.
type SyncRepository interface {
	// Apply executes a plan as one atomic unit: the audit append plus, for
	// daily plans, the conditional latest upsert. The replacement check is a
	// single conditional statement in the backend, never a read-then-write in
	// application code. applied reports whether the latest view changed.
	Apply(ctx context.Context, plan model.Plan) (applied bool, err error)
}
