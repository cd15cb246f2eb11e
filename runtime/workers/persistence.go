package workers

import (
	"context"
	"log/slog"
	"time"

	"syncx/domain/chat"
	"syncx/observability"
	"syncx/repositories"
)

// MessagePersister stores messages that were already fanned out live.
// Storing happens after delivery and is never rolled back: a failure leaves
// a message that members saw but history does not hold. Such durability
// gaps are logged and counted.
type MessagePersister struct {
	log          *slog.Logger
	repository   repositories.IMessageRepository
	metrics      *observability.Metrics
	queue        chan chat.Message
	storeTimeout time.Duration
}

func NewMessagePersister(log *slog.Logger, repository repositories.IMessageRepository, metrics *observability.Metrics, bufferSize int, storeTimeout time.Duration) *MessagePersister {
	return &MessagePersister{
		log:          log,
		repository:   repository,
		metrics:      metrics,
		queue:        make(chan chat.Message, bufferSize),
		storeTimeout: storeTimeout,
	}
}

// Enqueue hands a message over without blocking. A full queue is a
// durability gap and returns false.
func (w *MessagePersister) Enqueue(message chat.Message) bool {
	select {
	case w.queue <- message:
		return true
	default:
		w.metrics.IncrPersistenceFailure()
		w.log.Error("Durability gap, persistence queue full",
			"message_id", message.ID, "chat_id", message.ChatID)
		return false
	}
}

func (w *MessagePersister) Run(ctx context.Context) error {
	for {
		select {
		case message := <-w.queue:
			w.store(message)
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Context done, stopping message persistence")
			return nil
		}
	}
}

// drain stores what is still queued at shutdown.
func (w *MessagePersister) drain() {
	for {
		select {
		case message := <-w.queue:
			w.store(message)
		default:
			return
		}
	}
}

func (w *MessagePersister) store(message chat.Message) {
	done := make(chan error, 1)
	go func() { done <- w.repository.Store(message) }()

	var err error
	select {
	case err = <-done:
	case <-time.After(w.storeTimeout):
		err = context.DeadlineExceeded
	}
	if err != nil {
		w.metrics.IncrPersistenceFailure()
		w.log.Error("Durability gap, message delivered live but not stored",
			"message_id", message.ID, "chat_id", message.ChatID, "error", err)
		return
	}
	w.metrics.IncrPersisted()
}
