// Package queue provides the Redis queue trigger. External systems push
// trigger requests onto a Redis list; each request starts one workflow run.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

const popTimeout = 1 * time.Second

// Dispatcher admits workflow runs. The coordinator implements it.
type Dispatcher interface {
	Trigger(ctx context.Context, campaignID, graphName string, runContext map[string]any) (*models.Run, error)
}

// Request is the message shape external producers push onto the queue.
type Request struct {
	CampaignID string         `json:"campaign_id"`
	Graph      string         `json:"graph,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// Trigger consumes trigger requests from a Redis list.
type Trigger struct {
	Queue      string
	Connection map[string]string

	client     redis.UniversalClient
	dispatcher Dispatcher
	logger     *slog.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewTrigger(queue string, connection map[string]string, dispatcher Dispatcher, logger *slog.Logger) (*Trigger, error) {
	if queue == "" {
		return nil, errors.New("queue trigger queue name is required")
	}

	if connection == nil {
		connection = make(map[string]string)
	}

	return &Trigger{
		Queue:      queue,
		Connection: connection,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_trigger",
			"queue", queue,
		),
	}, nil
}

func (t *Trigger) Start(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Starting queue trigger")

	err := t.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	t.wg.Add(1)

	go t.consume(ctx)

	return nil
}

func (t *Trigger) initializeClient(ctx context.Context) error {
	addr := t.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	password := t.Connection["password"]
	db := 0

	if dbStr := t.Connection["db"]; dbStr != "" {
		var err error
		if db, err = t.parseDB(dbStr); err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	t.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := t.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	t.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (t *Trigger) parseDB(dbStr string) (int, error) {
	var db int

	_, err := fmt.Sscanf(dbStr, "%d", &db)

	return db, err
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	t.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-t.stopCh:
			t.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := t.processMessage(ctx)
			if err != nil {
				t.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (t *Trigger) processMessage(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, popTimeout, t.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var request Request

	err = json.Unmarshal([]byte(message), &request)
	if err != nil {
		t.logger.ErrorContext(ctx, "Discarding malformed trigger request", "error", err)

		return nil
	}

	if request.CampaignID == "" {
		t.logger.ErrorContext(ctx, "Discarding trigger request without campaign_id")

		return nil
	}

	graphName := request.Graph
	if graphName == "" {
		graphName = graph.GraphMonitoring
	}

	runContext := request.Context
	if runContext == nil {
		runContext = make(map[string]any)
	}

	runContext["triggered_by"] = "queue"

	run, err := t.dispatcher.Trigger(ctx, request.CampaignID, graphName, runContext)
	if err != nil {
		if persistence.IsRunAlreadyActive(err) {
			t.logger.DebugContext(ctx, "Campaign already has an active run", "campaign_id", request.CampaignID)

			return nil
		}

		return fmt.Errorf("failed to trigger run for campaign %s: %w", request.CampaignID, err)
	}

	t.logger.InfoContext(ctx, "Run triggered from queue", "run_id", run.ID, "campaign_id", request.CampaignID)

	return nil
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping queue trigger")

	close(t.stopCh)
	t.wg.Wait()

	if t.client != nil {
		err := t.client.Close()
		if err != nil {
			t.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
