package wire

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/KirkDiggler/pcg-director/internal/entities"
	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/tags"
)

// answerDocument is the inner response document as written by the service
type answerDocument struct {
	Analysis             string  `json:"analysis"`
	DifficultyMultiplier float64 `json:"difficultyMultiplier"`
	EnemySpawnRate       float64 `json:"enemySpawnRate"`
	MapComplexity        float64 `json:"mapComplexity"`
	EnemyAggression      string  `json:"enemyAggression"`
	ObstacleType         string  `json:"obstacleType"`
	Atmosphere           string  `json:"atmosphere"`
}

// ParseMapParams parses the inner answer document.
//
// A document that is not a JSON object returns DefaultMapParams together with
// a DataLoss error. Fields are read one at a time: an absent or wrongly typed
// number keeps its default, numeric strings are accepted as numbers, and
// scalar tag values are read as text. Tag strings that do not resolve leave
// the tag empty and, when non-empty, are listed in UnresolvedTags; they never
// fail the parse.
func ParseMapParams(answer string, registry *tags.Registry) (*entities.MapParams, error) {
	if registry == nil {
		return entities.DefaultMapParams(), errors.InvalidArgument("tag registry is required")
	}
	if !isObject([]byte(answer)) {
		return entities.DefaultMapParams(), errors.DataLoss("answer is not a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(answer), &fields); err != nil {
		return entities.DefaultMapParams(), errors.WrapWithCode(err, errors.CodeDataLoss, "malformed answer")
	}

	params := entities.DefaultMapParams()
	params.Analysis = stringField(fields, "analysis")
	params.DifficultyMultiplier = numberField(fields, "difficultyMultiplier", params.DifficultyMultiplier)
	params.EnemySpawnRate = numberField(fields, "enemySpawnRate", params.EnemySpawnRate)
	params.MapComplexity = numberField(fields, "mapComplexity", params.MapComplexity)
	params.EnemyAggression = resolveInto(params, registry, tags.CategoryAggression, stringField(fields, "enemyAggression"))
	params.ObstacleType = resolveInto(params, registry, tags.CategoryObstacle, stringField(fields, "obstacleType"))
	params.Atmosphere = resolveInto(params, registry, tags.CategoryAtmosphere, stringField(fields, "atmosphere"))

	return params, nil
}

// numberField reads a finite number or numeric string, else returns def
func numberField(fields map[string]json.RawMessage, name string, def float64) float64 {
	raw, ok := fields[name]
	if !ok {
		return def
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return def
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return def
	}
	return n
}

// stringField reads a string. Numbers and booleans are returned as their
// literal text; objects, arrays and null read as empty.
func stringField(fields map[string]json.RawMessage, name string) string {
	raw := bytes.TrimSpace(fields[name])
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	switch raw[0] {
	case '{', '[', 'n':
		return ""
	}
	return string(raw)
}

// MarshalMapParams returns the inner answer document for params. Tags are
// written by key; empty tags are written as empty strings.
func MarshalMapParams(params *entities.MapParams) (string, error) {
	if params == nil {
		return "", errors.InvalidArgument("map params are required")
	}

	data, err := json.Marshal(answerDocument{
		Analysis:             params.Analysis,
		DifficultyMultiplier: params.DifficultyMultiplier,
		EnemySpawnRate:       params.EnemySpawnRate,
		MapComplexity:        params.MapComplexity,
		EnemyAggression:      params.EnemyAggression.Key,
		ObstacleType:         params.ObstacleType.Key,
		Atmosphere:           params.Atmosphere.Key,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal map params")
	}
	return string(data), nil
}

func resolveInto(params *entities.MapParams, registry *tags.Registry, category tags.Category, value string) tags.Tag {
	tag, err := registry.ResolveIn(category, value)
	if err != nil {
		if value != "" {
			params.UnresolvedTags = append(params.UnresolvedTags, value)
		}
		return tags.Tag{}
	}
	return tag
}
