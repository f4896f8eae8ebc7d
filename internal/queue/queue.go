// Package queue moves submissions between the daemon or CLI and evaluation
// workers over RabbitMQ. Jobs go to a durable work queue. Each result is
// published to the reply queue the job names, or to the shared results queue
// when it names none. Jobs a worker cannot decode are dead-lettered.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/coach/internal/engine"
)

const (
	SubmissionQueueName = "coach.submissions"
	DeadLetterQueueName = "coach.submissions.dead"
	ResultQueueName     = "coach.results"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
)

const (
	submissionTTL = 5 * time.Minute
	resultTTL     = time.Minute
	maxBackoff    = 30 * time.Second
	maxReconnects = 10
)

// SubmissionJob asks a worker to evaluate one submission.
type SubmissionJob struct {
	ID                 uuid.UUID `json:"id"`
	SessionID          string    `json:"session_id"`
	Code               string    `json:"code"`
	LanguageUnfamiliar bool      `json:"language_unfamiliar,omitempty"`
	TimeoutSeconds     int       `json:"timeout_seconds,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// SubmissionResult is a worker's answer to a job.
type SubmissionResult struct {
	JobID       uuid.UUID       `json:"job_id"`
	SessionID   string          `json:"session_id"`
	Status      string          `json:"status"`
	Outcome     *engine.Outcome `json:"outcome,omitempty"`
	Error       string          `json:"error,omitempty"`
	Duration    time.Duration   `json:"duration"`
	CompletedAt time.Time       `json:"completed_at"`
}

// queueSpec is a durable queue of the coach topology.
type queueSpec struct {
	name string
	args amqp.Table
}

// topology lists the queues every connection declares. Declaration is
// idempotent as long as the arguments do not change.
func topology() []queueSpec {
	return []queueSpec{
		{name: DeadLetterQueueName},
		{name: SubmissionQueueName, args: amqp.Table{
			"x-message-ttl":             int32(submissionTTL / time.Millisecond),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": DeadLetterQueueName,
		}},
		{name: ResultQueueName, args: amqp.Table{
			"x-message-ttl": int32(resultTTL / time.Millisecond),
		}},
	}
}

// Connection is a RabbitMQ connection with one shared channel. When the
// broker drops it, it redials in the background with exponential backoff.
type Connection struct {
	url string

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewConnection dials url and declares the queues.
func NewConnection(url string) (*Connection, error) {
	c := &Connection{url: url}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) open() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	for _, q := range topology() {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			conn.Close()
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	c.mu.Lock()
	c.conn, c.channel = conn, ch
	c.mu.Unlock()

	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	slog.Info("connected to rabbitmq", "url", sanitizeURL(c.url))
	return nil
}

// watch redials after an unexpected close. A nil error means the
// connection was closed on purpose.
func (c *Connection) watch(closed <-chan *amqp.Error) {
	reason, ok := <-closed
	if !ok || reason == nil {
		return
	}
	slog.Warn("rabbitmq connection lost", "error", reason)

	for attempt := 0; attempt < maxReconnects; attempt++ {
		time.Sleep(backoff(attempt))
		c.mu.RLock()
		stop := c.closed
		c.mu.RUnlock()
		if stop {
			return
		}
		if err := c.open(); err != nil {
			slog.Warn("rabbitmq reconnect failed", "attempt", attempt+1, "error", err)
			continue
		}
		slog.Info("reconnected to rabbitmq", "attempts", attempt+1)
		return
	}
	slog.Error("giving up on rabbitmq", "attempts", maxReconnects)
}

// backoff is the wait before reconnect attempt n: 1s doubling up to 30s.
func backoff(n int) time.Duration {
	if n >= 5 {
		return maxBackoff
	}
	return min(time.Second<<n, maxBackoff)
}

// Channel returns the current channel.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// IsConnected reports whether the underlying connection is open.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close closes the connection and stops reconnecting.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// publish sends v as a persistent JSON message to the default exchange.
// meta fills routing properties such as the reply queue.
func (c *Connection) publish(ctx context.Context, routingKey string, v any, meta amqp.Publishing) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	meta.ContentType = "application/json"
	meta.DeliveryMode = amqp.Persistent
	meta.Timestamp = time.Now()
	meta.Body = body

	return c.Channel().PublishWithContext(ctx, "", routingKey, false, false, meta)
}

// sanitizeURL hides the password of an AMQP URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
