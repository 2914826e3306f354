package history

import (
	"context"
	"encoding/json"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/pcg-director/internal/errors"
	redisclient "github.com/KirkDiggler/pcg-director/internal/redis"
)

// Key pattern: director:history:{player_id}
const historyKeyPrefix = "director:history:"

// Config holds the configuration for the Redis repository
type Config struct {
	Client redisclient.Client
	Options
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}
	if c.Client == nil {
		return errors.InvalidArgument("redis client is required")
	}
	return c.setDefaults()
}

type redisRepository struct {
	client redisclient.Client
	opts   Options
}

// NewRedisRepository creates a Redis backed history repository
func NewRedisRepository(cfg *Config) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &redisRepository{
		client: cfg.Client,
		opts:   cfg.Options,
	}, nil
}

var _ Repository = (*redisRepository)(nil)

func (r *redisRepository) Append(ctx context.Context, input *AppendInput) (*AppendOutput, error) {
	if err := validateAppend(input); err != nil {
		return nil, err
	}

	record := r.opts.newRecord(input)
	data, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal record")
	}

	key := buildKey(input.PlayerID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(r.opts.MaxEntries-1))
		pipe.Expire(ctx, key, r.opts.TTL)
		return nil
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to store record in Redis")
	}

	return &AppendOutput{Record: record}, nil
}

func (r *redisRepository) List(ctx context.Context, input *ListInput) (*ListOutput, error) {
	if err := validateList(input); err != nil {
		return nil, err
	}

	limit := r.opts.limit(input.Limit)
	values, err := r.client.LRange(ctx, buildKey(input.PlayerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to read history from Redis")
	}

	records := make([]*Record, 0, len(values))
	for _, value := range values {
		var record Record
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			slog.Warn("Skipping corrupt history record", "player_id", input.PlayerID, "error", err)
			continue
		}
		records = append(records, &record)
	}

	return &ListOutput{Records: records}, nil
}

func buildKey(playerID string) string {
	return historyKeyPrefix + playerID
}
