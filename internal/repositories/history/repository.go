// Package history stores the analyses served to each player
package history

import (
	"context"
	"time"

	"github.com/KirkDiggler/pcg-director/internal/entities"
	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/pkg/clock"
	"github.com/KirkDiggler/pcg-director/internal/pkg/idgen"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=historymock github.com/KirkDiggler/pcg-director/internal/repositories/history Repository

const (
	// DefaultMaxEntries is how many records are kept per player
	DefaultMaxEntries = 50
	// DefaultTTL is how long a player's history lives after the last append
	DefaultTTL = 24 * time.Hour

	errInputNil      = "input is required"
	errPlayerIDEmpty = "player ID cannot be empty"
)

// Record is one served analysis
type Record struct {
	ID       string                `json:"id"`
	PlayerID string                `json:"playerId"`
	State    *entities.PlayerState `json:"state,omitempty"`
	// Data is the raw request document, kept when it was not a player state
	Data      string    `json:"data,omitempty"`
	Answer    string    `json:"answer"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository defines history storage
type Repository interface {
	// Append stores a record, trimming the player's history to the newest entries
	Append(ctx context.Context, input *AppendInput) (*AppendOutput, error)

	// List returns a player's records, newest first
	List(ctx context.Context, input *ListInput) (*ListOutput, error)
}

// AppendInput contains the record fields supplied by the caller
type AppendInput struct {
	PlayerID string
	State    *entities.PlayerState
	Data     string
	Answer   string
	Source   string
}

// AppendOutput contains the stored record
type AppendOutput struct {
	Record *Record
}

// ListInput selects a player's records. A zero Limit returns everything kept.
type ListInput struct {
	PlayerID string
	Limit    int
}

// ListOutput contains records, newest first
type ListOutput struct {
	Records []*Record
}

// Options are shared by both implementations
type Options struct {
	// Clock stamps records (optional, defaults to the wall clock)
	Clock clock.Clock
	// IDGenerator names records (optional, defaults to UUIDs)
	IDGenerator idgen.Generator
	// MaxEntries kept per player (optional, defaults to DefaultMaxEntries)
	MaxEntries int
	// TTL of a player's history (optional, defaults to DefaultTTL)
	TTL time.Duration
}

func (o *Options) setDefaults() error {
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.IDGenerator == nil {
		o.IDGenerator = idgen.NewUUID(idgen.PrefixRecord)
	}
	if o.MaxEntries == 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.TTL == 0 {
		o.TTL = DefaultTTL
	}

	vb := errors.NewValidationBuilder()
	if o.MaxEntries < 0 {
		vb.Field("MaxEntries", "must not be negative")
	}
	if o.TTL < 0 {
		vb.Field("TTL", "must not be negative")
	}
	return vb.Build()
}

func (o *Options) newRecord(input *AppendInput) *Record {
	return &Record{
		ID:        o.IDGenerator.Generate(),
		PlayerID:  input.PlayerID,
		State:     input.State,
		Data:      input.Data,
		Answer:    input.Answer,
		Source:    input.Source,
		CreatedAt: o.Clock.Now().UTC(),
	}
}

// limit clamps a requested limit to what is kept
func (o *Options) limit(requested int) int {
	if requested <= 0 || requested > o.MaxEntries {
		return o.MaxEntries
	}
	return requested
}

func validateAppend(input *AppendInput) error {
	if input == nil {
		return errors.InvalidArgument(errInputNil)
	}
	if input.PlayerID == "" {
		return errors.InvalidArgument(errPlayerIDEmpty)
	}
	return nil
}

func validateList(input *ListInput) error {
	if input == nil {
		return errors.InvalidArgument(errInputNil)
	}
	if input.PlayerID == "" {
		return errors.InvalidArgument(errPlayerIDEmpty)
	}
	if input.Limit < 0 {
		return errors.InvalidArgument("limit must not be negative")
	}
	return nil
}
