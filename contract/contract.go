//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"syncx/domain/chat"
	"syncx/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live client handle. Consume must not block: a handle
// that cannot accept the event right away reports an error instead.
type Connection interface {
	ID() string
	Consume(ctx context.Context, e event.Event) error
}

type IRegistry interface {
	Bind(userID string, conn Connection)
	Unbind(conn Connection) (userID string, remaining int, ok bool)
	ConnectionsFor(userIDs ...string) []Connection
	Connections() []Connection
	Count(userID string) int
}

type IRouter interface {
	Emit(ctx context.Context, kind event.Kind, targets []string, data any) event.Delivery
	EmitFrom(ctx context.Context, origin Connection, kind event.Kind, targets []string, data any) event.Delivery
	Broadcast(ctx context.Context, kind event.Kind, data any) event.Delivery
	Reply(ctx context.Context, conn Connection, kind event.Kind, data any) event.Delivery
}

// File is an upload waiting for the blob store.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// BlobStore keeps attachment and avatar bytes, addressed by public id.
type BlobStore interface {
	Upload(ctx context.Context, file File) (chat.Attachment, error)
	Delete(ctx context.Context, publicIDs ...string) error
}
