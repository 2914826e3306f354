package history

import (
	"context"
	"encoding/json"

	"github.com/KirkDiggler/pcg-director/internal/errors"
	redisclient "github.com/KirkDiggler/pcg-director/internal/redis"
)

// CorruptEntry is a stored history entry that no longer decodes
type CorruptEntry struct {
	Key   string
	Value string
}

// FindCorrupt scans every history key and returns entries that do not decode
// as records, along with the number of keys checked
func FindCorrupt(ctx context.Context, client redisclient.Client) ([]CorruptEntry, int, error) {
	if client == nil {
		return nil, 0, errors.InvalidArgument("redis client is required")
	}

	var corrupt []CorruptEntry
	checked := 0

	iter := client.Scan(ctx, 0, historyKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		checked++

		values, err := client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, checked, errors.Wrapf(err, "failed to read %s", key)
		}

		for _, value := range values {
			var record Record
			if err := json.Unmarshal([]byte(value), &record); err != nil || record.ID == "" {
				corrupt = append(corrupt, CorruptEntry{Key: key, Value: value})
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, checked, errors.Wrap(err, "failed to scan history keys")
	}

	return corrupt, checked, nil
}

// RemoveCorrupt deletes the given entries and returns how many were removed
func RemoveCorrupt(ctx context.Context, client redisclient.Client, entries []CorruptEntry) (int, error) {
	if client == nil {
		return 0, errors.InvalidArgument("redis client is required")
	}

	removed := 0
	for _, entry := range entries {
		n, err := client.LRem(ctx, entry.Key, 0, entry.Value).Result()
		if err != nil {
			return removed, errors.Wrapf(err, "failed to remove entry from %s", entry.Key)
		}
		removed += int(n)
	}
	return removed, nil
}
