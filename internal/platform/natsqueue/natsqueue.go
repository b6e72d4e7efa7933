// Package natsqueue implements the job queue port using NATS JetStream,
// giving at-least-once delivery across processes. The in-memory queue in
// internal/queue remains the default for single-process deployments.
package natsqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/supermodelai/supermodel-api/internal/queue"
)

const (
	streamName  = "TASKS"
	subjectName = "tasks.jobs"
)

// Queue implements queue.Queue using a NATS JetStream stream with a single
// durable consumer. A message is acknowledged only once a worker has taken
// the job off the handoff channel, so a crash between delivery and handoff
// redelivers the job instead of losing it.
type Queue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	jobs   chan *queue.Job
	it     jetstream.MessagesContext
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// Connect establishes a connection to NATS, ensures the stream exists, and
// starts consuming jobs into the channel returned by Jobs.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"tasks.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       "task-workers",
		FilterSubject: subjectName,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	it, err := consumer.Messages()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	q := &Queue{
		nc:     nc,
		js:     js,
		jobs:   make(chan *queue.Job),
		it:     it,
		done:   make(chan struct{}),
		logger: logger.With("component", "nats_queue"),
	}

	q.wg.Add(1)
	go q.consumeLoop(it)

	q.logger.Info("nats connected", "url", url, "stream", streamName)
	return q, nil
}

// consumeLoop pulls messages off the iterator until it is stopped.
func (q *Queue) consumeLoop(it jetstream.MessagesContext) {
	defer q.wg.Done()

	for {
		msg, err := it.Next()
		if err != nil {
			if !errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				q.logger.Error("nats message iterator stopped", "error", err)
			}
			return
		}

		q.deliver(msg)
	}
}

// deliver hands one message to a worker. The ack is sent only after the
// handoff completes; on shutdown a pending message is nak'ed so another
// consumer picks it up.
func (q *Queue) deliver(msg jetstream.Msg) {
	job, err := queue.DecodeJob(msg.Data())
	if err != nil {
		// An undecodable message will never decode on redelivery.
		q.logger.Error("discarding undecodable job", "error", err)
		if termErr := msg.Term(); termErr != nil {
			q.logger.Error("nats term failed", "error", termErr)
		}
		return
	}

	select {
	case q.jobs <- job:
		if ackErr := msg.Ack(); ackErr != nil {
			q.logger.Error("nats ack failed", "task_id", job.TaskID, "error", ackErr)
		}
	case <-q.done:
		if nakErr := msg.Nak(); nakErr != nil {
			q.logger.Error("nats nak failed", "task_id", job.TaskID, "error", nakErr)
		}
	}
}

// Enqueue publishes a job to the stream.
func (q *Queue) Enqueue(ctx context.Context, job *queue.Job) error {
	data, err := job.Encode()
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	if _, err := q.js.Publish(ctx, subjectName, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subjectName, err)
	}

	q.logger.Debug("job enqueued", "task_id", job.TaskID, "job_name", job.Name)
	return nil
}

// Jobs returns the channel workers consume from.
func (q *Queue) Jobs() <-chan *queue.Job {
	return q.jobs
}

// Close stops the consumer and shuts down the NATS connection.
func (q *Queue) Close() error {
	q.stopConsuming()
	q.nc.Close()
	return nil
}

// stopConsuming tears down the consume pipeline in order: the iterator
// stops yielding, any delivery blocked on handoff is released and nak'ed,
// and only then is the jobs channel closed. No goroutine can be mid-send
// when the close happens.
func (q *Queue) stopConsuming() {
	if q.it != nil {
		q.it.Stop()
	}
	close(q.done)
	q.wg.Wait()
	close(q.jobs)
}

var _ queue.Queue = (*Queue)(nil)
