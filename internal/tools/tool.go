// Package tools hosts the discovery tool registry, the concurrent
// executor and the result merge/rank stage.
package tools

import (
	"context"

	"product-discovery/internal/models"
)

// Params is the shared input every tool receives. CandidateIDs carries
// product ids surfaced earlier in the conversation so comparison and
// inventory tools can operate on "those two" style references.
type Params struct {
	Query        *models.Query
	Intent       models.Intent
	SearchText   string // query text, or vision-derived search phrasing for image queries
	Limit        int
	CandidateIDs []string
}

// Result is one tool's contribution to the response.
type Result struct {
	Tool       string                 `json:"tool"`
	Products   []models.RankedProduct `json:"products,omitempty"`
	Comparison *models.Comparison     `json:"comparison,omitempty"`
}

// Tool is a single discovery capability. Execute must honor the context
// deadline; failures are isolated by the executor and never abort the
// overall query.
type Tool interface {
	Name() string
	CanHandle(kind models.IntentKind) bool
	Execute(ctx context.Context, params Params) (*Result, error)
}
