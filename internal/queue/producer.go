package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Producer publishes jobs and results.
type Producer struct {
	conn *Connection
}

// NewProducer creates a producer on conn.
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// NewSubmissionJob creates a job for a session's submission.
func NewSubmissionJob(sessionID, code string, unfamiliar bool) *SubmissionJob {
	return &SubmissionJob{
		ID:                 uuid.New(),
		SessionID:          sessionID,
		Code:               code,
		LanguageUnfamiliar: unfamiliar,
		CreatedAt:          time.Now(),
	}
}

// PublishSubmission enqueues job without waiting for it. Its result goes to
// the shared results queue.
func (p *Producer) PublishSubmission(ctx context.Context, job *SubmissionJob) error {
	return p.publishJob(ctx, job, "")
}

// publishJob enqueues job asking for the result on replyTo. The job ID is
// the correlation ID of the reply.
func (p *Producer) publishJob(ctx context.Context, job *SubmissionJob, replyTo string) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	meta := amqp.Publishing{
		MessageId:     job.ID.String(),
		CorrelationId: job.ID.String(),
		ReplyTo:       replyTo,
	}
	if err := p.conn.publish(ctx, SubmissionQueueName, job, meta); err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	slog.Debug("published submission job", "job_id", job.ID, "session_id", job.SessionID, "reply_to", replyTo)
	return nil
}

// reply publishes result to replyTo, or to the shared results queue when
// replyTo is empty.
func (p *Producer) reply(ctx context.Context, replyTo, correlationID string, result *SubmissionResult) error {
	if replyTo == "" {
		replyTo = ResultQueueName
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}
	if err := p.conn.publish(ctx, replyTo, result, amqp.Publishing{CorrelationId: correlationID}); err != nil {
		return fmt.Errorf("publish result of job %s: %w", result.JobID, err)
	}
	return nil
}
