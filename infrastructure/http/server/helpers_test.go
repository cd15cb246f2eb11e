package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"syncx/auth"
	"syncx/domain/chat"
	"syncx/observability"
	"syncx/repositories"
	"syncx/runtime"
	"syncx/services"
	"syncx/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const adminKey = "let-me-in"

var fastParams = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type testServer struct {
	*httptest.Server
	users    *repositories.UserRepository
	chats    *repositories.ChatRepository
	tokens   *auth.TokenManager
	metrics  *observability.Metrics
	presence *runtime.Presence
}

// newTestServer serves the full HTTP surface over an in-memory store.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	chats := repositories.NewChatRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	requests := repositories.NewFriendRequestRepository(db)
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence(registry)
	metrics := observability.NewMetrics()
	router := runtime.NewRouter(log, registry, metrics, time.Second)
	locks := runtime.NewKeyedMutex()
	uploads := t.TempDir()
	blobs, err := storage.NewDiskStore(log, uploads, "/uploads")
	require.NoError(t, err)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	chatService := services.NewChatService(log, chats, users, messages, blobs, router, locks)
	srv := New(log, Dependencies{
		Auth:     auth.NewAuthenticator(tokens, users, adminKey),
		Accounts: services.NewAuthService(users, auth.NewPasswordHasher(fastParams), tokens, blobs),
		Profiles: services.NewUserService(log, users, chats, blobs),
		Friends:  services.NewFriendService(log, requests, users, chats, chatService, router, locks),
		Chats:    chatService,
		Messages: services.NewMessageService(log, messages, chats, users, blobs, router),
		Admin: services.NewAdminService(log, services.AdminDependencies{
			Users:    users,
			Chats:    chats,
			Messages: messages,
			Requests: requests,
			Blobs:    blobs,
			Router:   router,
			Locks:    locks,
			Online:   presence,
			Registry: registry,
			Metrics:  metrics,
		}),
		Socket:  services.NewSocketService(log, presence, router, chats, storeNow{messages}, metrics),
		Metrics: metrics,
	}, Options{
		UploadsDir:         uploads,
		InsecureSkipVerify: true,
		TokenDuration:      time.Hour,
		WriteTimeout:       time.Second,
	})

	ts := &testServer{
		Server:   httptest.NewServer(srv.Handler()),
		users:    users,
		chats:    chats,
		tokens:   tokens,
		metrics:  metrics,
		presence: presence,
	}
	t.Cleanup(ts.Close)
	return ts
}

type storeNow struct {
	repository repositories.IMessageRepository
}

func (s storeNow) Enqueue(message chat.Message) bool {
	return s.repository.Store(message) == nil
}

// user stores a user and returns a bearer token for it.
func (ts *testServer) user(t *testing.T, id string) string {
	t.Helper()
	require.NoError(t, ts.users.Create(chat.User{
		ID:        id,
		Name:      "name-" + id,
		Username:  "handle_" + id,
		CreatedAt: time.Now().UTC(),
	}))
	token, err := ts.tokens.GenerateUserToken(id)
	require.NoError(t, err)
	return token
}

// call sends a JSON request with an optional bearer token and decodes the
// JSON answer.
func (ts *testServer) call(t *testing.T, client *http.Client, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, client, r)
}

func send(t *testing.T, client *http.Client, r *http.Request) (int, map[string]any) {
	t.Helper()
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(r)
	require.NoError(t, err)
	defer res.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&decoded))
	return res.StatusCode, decoded
}

func jarClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}
