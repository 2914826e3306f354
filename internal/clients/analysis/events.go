package analysis

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-toolkit/core"
	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/pcg-director/internal/entities"
)

const (
	// EventMapParamsReceived is published once per successful response
	EventMapParamsReceived = "director.map_params.received"

	// EntityTypeBridge is the source type of published events
	EntityTypeBridge = "analysis_bridge"

	contextKeyParams    = "map_params"
	contextKeyRequestID = "request_id"
)

// MapParamsHandler receives broadcast params. Each listener gets its own
// copy.
type MapParamsHandler func(ctx context.Context, requestID string, params *entities.MapParams)

// bridgeEntity identifies the client as the source of its events
type bridgeEntity struct {
	id string
}

func (e *bridgeEntity) GetID() string {
	return e.id
}

func (e *bridgeEntity) GetType() string {
	return EntityTypeBridge
}

var _ core.Entity = (*bridgeEntity)(nil)

func (c *client) OnMapParamsReceived(fn MapParamsHandler) string {
	return c.bus.SubscribeFunc(EventMapParamsReceived, 0, func(ctx context.Context, event events.Event) error {
		if event.Source() == nil || event.Source().GetID() != c.source.GetID() {
			return nil
		}

		value, ok := event.Context().Get(contextKeyParams)
		if !ok {
			return nil
		}
		params, ok := value.(*entities.MapParams)
		if !ok || params == nil {
			return nil
		}

		var requestID string
		if v, ok := event.Context().Get(contextKeyRequestID); ok {
			requestID, _ = v.(string)
		}

		fn(ctx, requestID, copyParams(params))
		return nil
	})
}

func (c *client) Unsubscribe(subscriptionID string) error {
	return c.bus.Unsubscribe(subscriptionID)
}

func (c *client) broadcast(ctx context.Context, requestID string, params *entities.MapParams) {
	event := events.NewGameEvent(EventMapParamsReceived, c.source, nil)
	event.Context().Set(contextKeyParams, params)
	event.Context().Set(contextKeyRequestID, requestID)

	if err := c.bus.Publish(ctx, event); err != nil {
		slog.Error("Failed to broadcast map params", "request_id", requestID, "error", err)
	}
}

func copyParams(params *entities.MapParams) *entities.MapParams {
	clone := *params
	if params.UnresolvedTags != nil {
		clone.UnresolvedTags = append([]string(nil), params.UnresolvedTags...)
	}
	return &clone
}
