package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/coach/internal/engine"
)

// ErrNotStarted is returned by Request before the result consumer started.
var ErrNotStarted = errors.New("result consumer not started")

// JobHandler evaluates a submission job.
type JobHandler func(ctx context.Context, job *SubmissionJob) (*engine.Outcome, error)

// Submitter is the part of the engine a worker drives.
type Submitter interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (*engine.Outcome, error)
}

// SubmitHandler evaluates jobs with s.
func SubmitHandler(s Submitter) JobHandler {
	return func(ctx context.Context, job *SubmissionJob) (*engine.Outcome, error) {
		return s.Submit(ctx, engine.SubmitRequest{
			SessionID:          job.SessionID,
			Code:               job.Code,
			LanguageUnfamiliar: job.LanguageUnfamiliar,
		})
	}
}

// JobObserver is told the final status of every job.
type JobObserver interface {
	ObserveJob(status string)
}

// ConsumerConfig tunes a worker pool.
type ConsumerConfig struct {
	Workers int
	// Prefetch is the number of unacknowledged jobs the broker hands out
	// per channel.
	Prefetch int
	// Timeout bounds a job that does not carry its own timeout.
	Timeout  time.Duration
	Observer JobObserver
}

// DefaultConsumerConfig returns two workers taking one job at a time.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{Workers: 2, Prefetch: 1, Timeout: 30 * time.Second}
}

// Consumer is a pool of workers evaluating jobs from the submission queue.
type Consumer struct {
	conn     *Connection
	handler  JobHandler
	producer *Producer
	cfg      ConsumerConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a consumer. Zero config fields take defaults.
func NewConsumer(conn *Connection, handler JobHandler, cfg ConsumerConfig) *Consumer {
	d := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = d.Prefetch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &Consumer{conn: conn, handler: handler, producer: NewProducer(conn), cfg: cfg}
}

// Start subscribes to the submission queue and starts the workers.
func (c *Consumer) Start(ctx context.Context) error {
	ch := c.conn.Channel()
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(SubmissionQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", SubmissionQueueName, err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.work(ctx, i, deliveries)
	}
	slog.Info("submission workers started", "workers", c.cfg.Workers, "prefetch", c.cfg.Prefetch)
	return nil
}

func (c *Consumer) work(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				slog.Warn("submission deliveries closed", "worker_id", id)
				return
			}
			c.handle(ctx, id, d)
		}
	}
}

// handle evaluates one delivery, replies and acknowledges it. Undecodable
// jobs are rejected into the dead-letter queue.
func (c *Consumer) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	result, ok := c.process(ctx, workerID, d.Body)
	if !ok {
		_ = d.Reject(false)
		return
	}

	correlationID := d.CorrelationId
	if correlationID == "" {
		correlationID = result.JobID.String()
	}
	if err := c.producer.reply(ctx, d.ReplyTo, correlationID, result); err != nil {
		slog.Error("failed to publish result", "worker_id", workerID, "job_id", result.JobID, "error", err)
	}
	if err := d.Ack(false); err != nil {
		slog.Error("failed to ack job", "worker_id", workerID, "job_id", result.JobID, "error", err)
	}
}

// process evaluates a job body. It reports false when the body is not a
// job.
func (c *Consumer) process(ctx context.Context, workerID int, body []byte) (*SubmissionResult, bool) {
	start := time.Now()

	var job SubmissionJob
	if err := json.Unmarshal(body, &job); err != nil {
		slog.Error("undecodable submission job", "worker_id", workerID, "error", err)
		c.observe(StatusFailed)
		return nil, false
	}

	timeout := c.cfg.Timeout
	if job.TimeoutSeconds > 0 {
		timeout = time.Duration(job.TimeoutSeconds) * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := c.handler(jobCtx, &job)
	result := &SubmissionResult{
		JobID:       job.ID,
		SessionID:   job.SessionID,
		Status:      StatusCompleted,
		Outcome:     outcome,
		Duration:    time.Since(start),
		CompletedAt: time.Now(),
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusTimeout
		result.Error = "submission timed out"
	case err != nil:
		result.Status = StatusFailed
		result.Error = err.Error()
	}

	log := slog.With("worker_id", workerID, "job_id", job.ID, "session_id", job.SessionID, "duration", result.Duration)
	if err != nil {
		log.Error("submission job failed", "status", result.Status, "error", err)
	} else {
		log.Info("submission job evaluated", "category", outcome.Feedback.Category)
	}

	c.observe(result.Status)
	return result, true
}

func (c *Consumer) observe(status string) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveJob(status)
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// ResultConsumer submits jobs and waits for their results on a private,
// broker-named reply queue that disappears with the connection.
type ResultConsumer struct {
	conn *Connection

	mu         sync.Mutex
	replyQueue string
	pending    map[string]chan *SubmissionResult

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResultConsumer creates a result consumer on conn.
func NewResultConsumer(conn *Connection) *ResultConsumer {
	return &ResultConsumer{conn: conn, pending: make(map[string]chan *SubmissionResult)}
}

// Start declares the reply queue and begins routing replies.
func (rc *ResultConsumer) Start(ctx context.Context) error {
	ch := rc.conn.Channel()
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare reply queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume reply queue: %w", err)
	}

	rc.mu.Lock()
	rc.replyQueue = q.Name
	rc.mu.Unlock()

	ctx, rc.cancel = context.WithCancel(ctx)
	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				rc.dispatch(d.CorrelationId, d.Body)
			}
		}
	}()
	return nil
}

// Request publishes job and waits for its result or for ctx to end.
func (rc *ResultConsumer) Request(ctx context.Context, p *Producer, job *SubmissionJob) (*SubmissionResult, error) {
	rc.mu.Lock()
	replyQueue := rc.replyQueue
	rc.mu.Unlock()
	if replyQueue == "" {
		return nil, ErrNotStarted
	}

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	// Register before publishing so a fast worker cannot be missed.
	id := job.ID.String()
	ch := rc.expect(id)
	defer rc.forget(id)

	if err := p.publishJob(ctx, job, replyQueue); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (rc *ResultConsumer) expect(id string) <-chan *SubmissionResult {
	ch := make(chan *SubmissionResult, 1)
	rc.mu.Lock()
	rc.pending[id] = ch
	rc.mu.Unlock()
	return ch
}

func (rc *ResultConsumer) forget(id string) {
	rc.mu.Lock()
	delete(rc.pending, id)
	rc.mu.Unlock()
}

// dispatch hands a reply to its waiter. Replies nobody waits for any more
// are dropped.
func (rc *ResultConsumer) dispatch(correlationID string, body []byte) {
	var result SubmissionResult
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Error("undecodable submission result", "error", err)
		return
	}
	if correlationID == "" {
		correlationID = result.JobID.String()
	}

	rc.mu.Lock()
	ch, ok := rc.pending[correlationID]
	delete(rc.pending, correlationID)
	rc.mu.Unlock()

	if !ok {
		slog.Debug("dropping unexpected result", "correlation_id", correlationID)
		return
	}
	ch <- &result
}

// Stop stops routing replies.
func (rc *ResultConsumer) Stop() {
	if rc.cancel != nil {
		rc.cancel()
	}
	rc.wg.Wait()
}
