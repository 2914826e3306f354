package director

import (
	"encoding/json"

	"github.com/KirkDiggler/pcg-director/internal/entities"
)

// FallbackAnalysis marks an answer produced without a real analysis
const FallbackAnalysis = "error - defaults applied"

// answer is the document shape the analysis service emits. Tags are plain
// strings, either full keys or bare leaves.
type answer struct {
	Analysis             string  `json:"analysis"`
	DifficultyMultiplier float64 `json:"difficultyMultiplier"`
	EnemySpawnRate       float64 `json:"enemySpawnRate"`
	EnemyAggression      string  `json:"enemyAggression"`
	MapComplexity        float64 `json:"mapComplexity"`
	ObstacleType         string  `json:"obstacleType"`
	Atmosphere           string  `json:"atmosphere"`
}

var fallbackAnswer = answer{
	Analysis:             FallbackAnalysis,
	DifficultyMultiplier: entities.DefaultDifficultyMultiplier,
	EnemySpawnRate:       entities.DefaultEnemySpawnRate,
	EnemyAggression:      "Medium",
	MapComplexity:        entities.DefaultMapComplexity,
	ObstacleType:         "Cover",
	Atmosphere:           "Bright_Clear",
}

// FallbackAnswer returns the answer served when no analysis could be made
func FallbackAnswer() string {
	data, err := json.Marshal(fallbackAnswer)
	if err != nil {
		// static document
		panic(err)
	}
	return string(data)
}

func fallbackOutput() *AnalyzeOutput {
	return &AnalyzeOutput{Answer: FallbackAnswer(), Source: SourceFallback}
}
