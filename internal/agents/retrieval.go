package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/models"
)

// KnowledgeSearcher is the slice of the knowledge-base client the retrieval
// agent needs.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
}

// RetrievalResult carries entity hints and context gathered from the
// knowledge base for one iteration.
type RetrievalResult struct {
	Entities  []string
	Aliases   map[string]string // company name -> ticker
	Summaries []string
}

// KnowledgeRetrievalAgent queries the knowledge base for entity hints,
// aliases, and contextual summaries. Total failure is tolerated: it is
// recorded as an uncertainty on the task context and an empty result is
// returned, never an error.
type KnowledgeRetrievalAgent struct {
	kb     KnowledgeSearcher
	limit  int
	logger *zap.Logger
}

// NewKnowledgeRetrievalAgent wires the retrieval agent. limit <= 0 uses a
// default of 8 hits.
func NewKnowledgeRetrievalAgent(kb KnowledgeSearcher, limit int, logger *zap.Logger) *KnowledgeRetrievalAgent {
	if limit <= 0 {
		limit = 8
	}
	return &KnowledgeRetrievalAgent{kb: kb, limit: limit, logger: logger.Named("retrieval")}
}

// Run searches the knowledge base with the user query.
func (a *KnowledgeRetrievalAgent) Run(ctx context.Context, tc *models.TaskContext) RetrievalResult {
	hits, err := a.kb.Search(ctx, tc.UserQuery, a.limit)
	if err != nil {
		a.logger.Warn("Knowledge retrieval failed",
			zap.String("run_id", tc.RunID),
			zap.Error(err),
		)
		tc.NoteUncertainty(fmt.Sprintf("knowledge retrieval failed: %v", err))
		return RetrievalResult{}
	}

	result := RetrievalResult{Aliases: make(map[string]string)}
	seen := make(map[string]bool)
	for _, h := range hits {
		if h.Ticker != "" && !seen[h.Ticker] {
			seen[h.Ticker] = true
			result.Entities = append(result.Entities, h.Ticker)
			if h.Company != "" {
				result.Aliases[h.Company] = h.Ticker
			}
		}
		if h.Text != "" && len(result.Summaries) < a.limit {
			result.Summaries = append(result.Summaries, h.Text)
		}
	}
	return result
}
