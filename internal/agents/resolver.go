package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/models"
	"github.com/fintelhq/fintel/internal/tools"
)

// EntityResolver guarantees the pipeline has a concrete work list before the
// research fan-out. Knowledge-base hints merged earlier in the iteration take
// precedence; the company-filter collaborator is only consulted when the
// entity list is still empty.
type EntityResolver struct {
	filter tools.CompanyFilter
	logger *zap.Logger
}

// NewEntityResolver wires the resolver.
func NewEntityResolver(filter tools.CompanyFilter, logger *zap.Logger) *EntityResolver {
	return &EntityResolver{filter: filter, logger: logger.Named("resolver")}
}

// Resolve populates tc.Entities from the company filter when no entities are
// known yet. Filter failure is soft: recorded as an uncertainty, leaving the
// entity list untouched. The caller decides what an empty list after Resolve
// means (it is the hard-stop condition for the run).
func (r *EntityResolver) Resolve(ctx context.Context, tc *models.TaskContext) {
	if len(tc.Entities) > 0 {
		return
	}

	symbols, err := r.filter.FindRelevantSymbols(ctx, tc.UserQuery)
	if err != nil {
		r.logger.Warn("Company filter failed",
			zap.String("run_id", tc.RunID),
			zap.Error(err),
		)
		tc.NoteUncertainty(fmt.Sprintf("company filter failed: %v", err))
		return
	}
	for _, s := range symbols {
		tc.AddEntity(s)
	}
	if len(symbols) > 0 {
		tc.Observe(fmt.Sprintf("Resolved %d entities via company filter", len(symbols)))
	}
}
