package entities

import (
	"github.com/KirkDiggler/pcg-director/internal/tags"
)

// Default tuning values used when the service omits a field or the answer
// cannot be parsed
const (
	DefaultDifficultyMultiplier = 1.0
	DefaultEnemySpawnRate       = 0.5
	DefaultMapComplexity        = 0.5
)

// MapParams are the tuning parameters consumed by procedural generation
type MapParams struct {
	Analysis             string   `json:"analysis"`
	DifficultyMultiplier float64  `json:"difficultyMultiplier"`
	EnemySpawnRate       float64  `json:"enemySpawnRate"`
	MapComplexity        float64  `json:"mapComplexity"`
	EnemyAggression      tags.Tag `json:"enemyAggression"`
	ObstacleType         tags.Tag `json:"obstacleType"`
	Atmosphere           tags.Tag `json:"atmosphere"`

	// UnresolvedTags lists raw tag strings that matched nothing in the
	// registry. The matching Tag fields are left empty.
	UnresolvedTags []string `json:"unresolvedTags,omitempty"`
}

// DefaultMapParams returns params at their declared defaults
func DefaultMapParams() *MapParams {
	return &MapParams{
		DifficultyMultiplier: DefaultDifficultyMultiplier,
		EnemySpawnRate:       DefaultEnemySpawnRate,
		MapComplexity:        DefaultMapComplexity,
	}
}

// HasUnresolvedTags reports whether any tag string failed to resolve
func (m *MapParams) HasUnresolvedTags() bool {
	return len(m.UnresolvedTags) > 0
}
