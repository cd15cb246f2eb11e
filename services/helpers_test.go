package services

import (
	"log/slog"
	"testing"
	"time"

	"syncx/domain/chat"
	"syncx/domain/event"
	"syncx/observability"
	"syncx/repositories"
	"syncx/runtime"
	"syncx/sink"
	"syncx/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// pngOf returns bytes sniffed as image/png, tagged so uploads differ.
func pngOf(tag string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), tag...)
}

// fixture wires the services on an in-memory store with the real runtime.
type fixture struct {
	users    *repositories.UserRepository
	chats    *repositories.ChatRepository
	messages *repositories.MessageRepository
	requests *repositories.FriendRequestRepository
	registry *runtime.Registry
	presence *runtime.Presence
	router   *runtime.Router
	metrics  *observability.Metrics
	locks    *runtime.KeyedMutex
	blobs    *storage.DiskStore
	blobDir  string

	chat    *ChatService
	friends *FriendService
	message *MessageService
	admin   *AdminService
	profile *UserService
	socket  *SocketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		users:    repositories.NewUserRepository(db),
		chats:    repositories.NewChatRepository(db),
		messages: repositories.NewMessageRepository(db, log),
		requests: repositories.NewFriendRequestRepository(db),
		registry: runtime.NewRegistry(),
		metrics:  observability.NewMetrics(),
		locks:    runtime.NewKeyedMutex(),
		blobDir:  t.TempDir(),
	}
	f.presence = runtime.NewPresence(f.registry)
	f.router = runtime.NewRouter(log, f.registry, f.metrics, time.Second)
	f.blobs, err = storage.NewDiskStore(log, f.blobDir, "http://localhost/uploads")
	require.NoError(t, err)

	f.chat = NewChatService(log, f.chats, f.users, f.messages, f.blobs, f.router, f.locks)
	f.chat.now = func() time.Time { return now }
	f.friends = NewFriendService(log, f.requests, f.users, f.chats, f.chat, f.router, f.locks)
	f.friends.now = func() time.Time { return now }
	f.message = NewMessageService(log, f.messages, f.chats, f.users, f.blobs, f.router)
	f.message.now = func() time.Time { return now }
	f.admin = NewAdminService(log, AdminDependencies{
		Users:    f.users,
		Chats:    f.chats,
		Messages: f.messages,
		Requests: f.requests,
		Blobs:    f.blobs,
		Router:   f.router,
		Locks:    f.locks,
		Online:   f.presence,
		Registry: f.registry,
		Metrics:  f.metrics,
	})
	f.admin.now = func() time.Time { return now }
	f.profile = NewUserService(log, f.users, f.chats, f.blobs)
	f.socket = NewSocketService(log, f.presence, f.router, f.chats, storeNow{f.messages}, f.metrics)
	f.socket.now = func() time.Time { return now }
	return f
}

// storeNow persists synchronously so tests can read history right away.
type storeNow struct {
	repository repositories.IMessageRepository
}

func (s storeNow) Enqueue(message chat.Message) bool {
	return s.repository.Store(message) == nil
}

func (f *fixture) user(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.users.Create(chat.User{
			ID:        id,
			Name:      "name-" + id,
			Username:  "handle_" + id,
			CreatedAt: now,
		}))
	}
}

// connect binds a fresh connection for userID.
func (f *fixture) connect(userID string) *sink.WebSocketSink {
	conn := sink.NewWebSocketSink(64)
	f.presence.Connect(userID, conn, nil)
	return conn
}

func (f *fixture) group(t *testing.T, creator string, members ...string) chat.Chat {
	t.Helper()
	g, err := f.chat.CreateGroup(t.Context(), creator, "group", members)
	require.NoError(t, err)
	return g
}

// drain returns the events buffered on conn.
func drain(conn *sink.WebSocketSink) []event.Event {
	var events []event.Event
	for {
		select {
		case e := <-conn.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func kinds(events []event.Event) []event.Kind {
	res := make([]event.Kind, 0, len(events))
	for _, e := range events {
		res = append(res, e.Kind)
	}
	return res
}

func alerts(events []event.Event) []string {
	var res []string
	for _, e := range events {
		if p, ok := e.Data.(event.AlertPayload); ok && e.Kind == event.Alert {
			res = append(res, p.Message)
		}
	}
	return res
}
