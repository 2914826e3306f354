// Package director decides the next map's tuning parameters from a player
// telemetry snapshot.
package director

import (
	"context"

	"github.com/KirkDiggler/pcg-director/internal/entities"
)

//go:generate mockgen -destination=mock/mock_director.go -package=directormock github.com/KirkDiggler/pcg-director/internal/services/director Director

// Source names the strategy that produced an answer
type Source string

const (
	SourceRules    Source = "rules"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Director turns player telemetry into an answer document
type Director interface {
	Analyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error)
}

// AnalyzeInput contains the request data
type AnalyzeInput struct {
	PlayerID string
	// Data is the raw inner request document as received
	Data string
	// State is the decoded snapshot, nil when Data is not a player state
	State *entities.PlayerState
}

// AnalyzeOutput contains the answer document
type AnalyzeOutput struct {
	// Answer is the JSON answer document returned to the caller verbatim
	Answer string
	Source Source
}
