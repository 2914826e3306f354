package director

import (
	"context"
	"log/slog"
	"math"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/pcg-director/internal/entities"
	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/tags"
	"github.com/KirkDiggler/pcg-director/internal/wire"
)

// Rule thresholds
const (
	healthyHealth    = 70.0
	strugglingHealth = 30.0
	fastKillSeconds  = 10.0
	slowKillSeconds  = 30.0
	minFastKills     = 3

	minDifficulty = 1.0
	maxDifficulty = 5.0
)

// balancedObstacles is indexed by a 1d3 roll
var balancedObstacles = []string{"Cover", "OpenArea", "Dense"}

// RuleConfig contains configuration for the rule director
type RuleConfig struct {
	// Roller picks the obstacle for balanced play (optional, defaults to dice.DefaultRoller)
	Roller dice.Roller
	// Registry resolves emitted tags (optional, defaults to tags.DefaultRegistry)
	Registry *tags.Registry
}

// Validate validates the config and sets defaults
func (cfg *RuleConfig) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config is required")
	}
	if cfg.Roller == nil {
		cfg.Roller = dice.DefaultRoller
	}
	if cfg.Registry == nil {
		cfg.Registry = tags.DefaultRegistry()
	}
	return nil
}

// RuleDirector applies fixed pacing rules without calling out to a model
type RuleDirector struct {
	roller   dice.Roller
	registry *tags.Registry
}

// NewRuleDirector creates a rule director
func NewRuleDirector(cfg *RuleConfig) (*RuleDirector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &RuleDirector{roller: cfg.Roller, registry: cfg.Registry}, nil
}

// Analyze implements Director
func (d *RuleDirector) Analyze(_ context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.State == nil || input.State.Validate() != nil {
		slog.Warn("No usable player state, serving fallback", "player_id", input.PlayerID)
		return fallbackOutput(), nil
	}

	draft, err := d.decide(input.State)
	if err != nil {
		return nil, err
	}

	params, err := d.resolve(draft)
	if err != nil {
		return nil, err
	}

	out, err := wire.MarshalMapParams(params)
	if err != nil {
		return nil, err
	}
	return &AnalyzeOutput{Answer: out, Source: SourceRules}, nil
}

func (d *RuleDirector) decide(state *entities.PlayerState) (answer, error) {
	switch {
	case state.IsDying || state.Health <= strugglingHealth || state.AverageKillTime >= slowKillSeconds:
		return answer{
			Analysis:             "player is struggling -> ease off, add cover",
			DifficultyMultiplier: minDifficulty,
			EnemySpawnRate:       0.3,
			EnemyAggression:      "Low",
			MapComplexity:        0.3,
			ObstacleType:         "Cover",
			Atmosphere:           "Bright_Clear",
		}, nil

	case state.Health >= healthyHealth && state.AverageKillTime <= fastKillSeconds && state.KillCount >= minFastKills:
		// each kill past the threshold adds a quarter step
		difficulty := 1.5 + 0.25*float64(state.KillCount-minFastKills)
		return answer{
			Analysis:             "player is cruising -> raise tension, add traps",
			DifficultyMultiplier: difficulty,
			EnemySpawnRate:       0.8,
			EnemyAggression:      "High",
			MapComplexity:        0.7,
			ObstacleType:         "Trap",
			Atmosphere:           "Red_Alarm",
		}, nil

	default:
		roll, err := d.roller.Roll(len(balancedObstacles))
		if err != nil {
			return answer{}, errors.Wrap(err, "failed to roll obstacle")
		}
		if roll < 1 || roll > len(balancedObstacles) {
			return answer{}, errors.Internalf("obstacle roll %d out of range", roll)
		}
		return answer{
			Analysis:             "player is in flow -> hold steady",
			DifficultyMultiplier: 1.5,
			EnemySpawnRate:       0.5,
			EnemyAggression:      "Medium",
			MapComplexity:        0.5,
			ObstacleType:         balancedObstacles[roll-1],
			Atmosphere:           "Dark_Foggy",
		}, nil
	}
}

func (d *RuleDirector) resolve(a answer) (*entities.MapParams, error) {
	params := &entities.MapParams{
		Analysis:             a.Analysis,
		DifficultyMultiplier: clamp(a.DifficultyMultiplier, minDifficulty, maxDifficulty),
		EnemySpawnRate:       clamp(a.EnemySpawnRate, 0, 1),
		MapComplexity:        clamp(a.MapComplexity, 0, 1),
	}

	var err error
	if params.EnemyAggression, err = d.registry.ResolveIn(tags.CategoryAggression, a.EnemyAggression); err != nil {
		return nil, errors.Wrap(err, "rule emitted unregistered tag")
	}
	if params.ObstacleType, err = d.registry.ResolveIn(tags.CategoryObstacle, a.ObstacleType); err != nil {
		return nil, errors.Wrap(err, "rule emitted unregistered tag")
	}
	if params.Atmosphere, err = d.registry.ResolveIn(tags.CategoryAtmosphere, a.Atmosphere); err != nil {
		return nil, errors.Wrap(err, "rule emitted unregistered tag")
	}
	return params, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
