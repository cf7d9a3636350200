package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	custdomain "scv_dedup_backend/internal/customers/domain"
	"scv_dedup_backend/platform/config"
)

// Client enqueues ingestion events.
type Client struct {
	client     *asynq.Client
	partitions int
}

// NewClient builds the ingestion enqueue side.
func NewClient(cfg config.QueueConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	partitions := cfg.GetQueuePartitions()
	if partitions < 1 {
		partitions = 1
	}

	return &Client{
		client:     asynq.NewClient(opt),
		partitions: partitions,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueCustomerData puts one ingestion event on its partition queue. The
// task ID is the upstream event ID, so re-delivery of the same event while
// the first copy is still queued or running is dropped here.
func (c *Client) EnqueueCustomerData(ctx context.Context, payload CustomerDataIngestedPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewCustomerDataIngestedTask(payload)
	if err != nil {
		return err
	}

	keys := custdomain.NormalizeKeys(
		payload.Customer.PAN,
		payload.Customer.Aadhaar,
		payload.Customer.Mobile,
		payload.Customer.Email,
	)

	opts := []asynq.Option{
		asynq.Queue(PartitionQueue(keys.Fingerprint(), c.partitions)),
	}
	if payload.EventID != "" {
		opts = append(opts, asynq.TaskID(payload.EventID))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Same event already queued, nothing to do.
		return nil
	}
	return err
}

// PartitionQueue maps an identity fingerprint to its queue name.
func PartitionQueue(fingerprint uint32, partitions int) string {
	if partitions < 1 {
		partitions = 1
	}
	return fmt.Sprintf("ingest:%d", fingerprint%uint32(partitions))
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
