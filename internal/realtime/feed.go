// Package realtime carries change notifications for a project's proposal
// feed and schedules the refreshes they trigger.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Event kinds mirror the row changes that affect the feed.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Event is one change notification on a project channel.
type Event struct {
	Kind       string `json:"kind"`
	ProjectID  int64  `json:"project_id"`
	ProposalID int64  `json:"proposal_id"`
}

// Subscription delivers events for one project until cancelled.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Feed publishes and subscribes to proposal change events.
type Feed interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, projectID int64) (Subscription, error)
}

type redisFeed struct {
	client        *redis.Client
	channelPrefix string
	logger        *slog.Logger
}

// NewRedisFeed builds a Feed on redis pub/sub. Each project gets its own
// channel, "<prefix>:<project_id>".
func NewRedisFeed(client *redis.Client, channelPrefix string, logger *slog.Logger) Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisFeed{
		client:        client,
		channelPrefix: channelPrefix,
		logger:        logger,
	}
}

func (f *redisFeed) channel(projectID int64) string {
	return fmt.Sprintf("%s:%d", f.channelPrefix, projectID)
}

func (f *redisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(event.ProjectID), payload).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

func (f *redisFeed) Subscribe(ctx context.Context, projectID int64) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel(projectID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to feed: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
	}
	go sub.pump(f.logger)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *redisSubscription) pump(logger *slog.Logger) {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.Warn("dropping malformed feed event", "channel", msg.Channel, "error", err)
			continue
		}
		select {
		case s.events <- event:
		default:
			// Slow consumer; the merge scheduler only needs one event per
			// window, so dropping here loses nothing.
		}
	}
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
