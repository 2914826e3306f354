// Package entities holds the telemetry snapshot sent for analysis and the
// tuning parameters that come back.
package entities

import (
	"github.com/KirkDiggler/pcg-director/internal/errors"
)

// PlayerState is a snapshot of a player's combat and health metrics.
// Field order is the wire order.
type PlayerState struct {
	Health          float64 `json:"health"`
	KillCount       int     `json:"killCount"`
	AverageKillTime float64 `json:"averageKillTime"`
	IsDying         bool    `json:"isDying"`
}

// Validate rejects values the wire format cannot carry
func (p *PlayerState) Validate() error {
	if p == nil {
		return errors.InvalidArgument("player state is required")
	}

	vb := errors.NewValidationBuilder()
	errors.ValidateFinite("health", p.Health, vb)
	errors.ValidateNonNegative("killCount", p.KillCount, vb)
	errors.ValidateFinite("averageKillTime", p.AverageKillTime, vb)

	return vb.Build()
}
