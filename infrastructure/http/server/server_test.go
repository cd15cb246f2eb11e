package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"syncx/auth"

	"github.com/stretchr/testify/require"
)

func TestServer_Health(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	status, body := ts.call(t, nil, http.MethodGet, "/api/v1/health", "", nil)

	req.Equal(http.StatusOK, status)
	req.Equal(true, body["success"])
}

func TestServer_Session(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	client := jarClient(t)

	// Given a multipart registration with an avatar
	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	for k, v := range map[string]string{"name": "Alice", "username": "alice", "password": "ComplexPass123!", "bio": "hi"} {
		req.NoError(w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("avatar", "me.png")
	req.NoError(err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\navatar bytes"))
	req.NoError(err)
	req.NoError(w.Close())
	r, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/user/new", &form)
	req.NoError(err)
	r.Header.Set("Content-Type", w.FormDataContentType())

	status, body := send(t, client, r)
	req.Equal(http.StatusCreated, status)
	user := body["user"].(map[string]any)
	req.Equal("alice", user["username"])
	req.NotEmpty(user["avatar"])
	req.NotContains(user, "PasswordHash")

	// The session cookie is enough for authenticated calls
	status, body = ts.call(t, client, http.MethodGet, "/api/v1/user/me", "", nil)
	req.Equal(http.StatusOK, status)
	req.Equal("Alice", body["user"].(map[string]any)["name"])

	status, _ = ts.call(t, client, http.MethodGet, "/api/v1/user/logout", "", nil)
	req.Equal(http.StatusOK, status)
	status, body = ts.call(t, client, http.MethodGet, "/api/v1/user/me", "", nil)
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(false, body["success"])
	req.Equal("Unauthorized", body["kind"])

	// Login issues a new session
	status, _ = ts.call(t, client, http.MethodPost, "/api/v1/user/login", "", map[string]string{"username": "ALICE", "password": "ComplexPass123!"})
	req.Equal(http.StatusOK, status)
	status, _ = ts.call(t, client, http.MethodGet, "/api/v1/user/me", "", nil)
	req.Equal(http.StatusOK, status)

	status, body = ts.call(t, nil, http.MethodPost, "/api/v1/user/login", "", map[string]string{"username": "alice", "password": "nope"})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal("Unauthorized", body["kind"])
}

func TestServer_GroupLifecycle(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	x, y := ts.user(t, "x"), ts.user(t, "y")
	ts.user(t, "z")
	ts.user(t, "w")

	status, body := ts.call(t, nil, http.MethodPost, "/api/v1/chat/new", x, map[string]any{"name": "team", "members": []string{"y"}})
	req.Equal(http.StatusBadRequest, status)
	req.Equal("ValidationError", body["kind"])

	status, body = ts.call(t, nil, http.MethodPost, "/api/v1/chat/new", x, map[string]any{"name": "team", "members": []string{"y", "z", "w"}})
	req.Equal(http.StatusCreated, status)
	chatID := body["group"].(map[string]any)["_id"].(string)

	// Only the admin removes members
	status, body = ts.call(t, nil, http.MethodPut, "/api/v1/chat/removemember", y, map[string]string{"chatId": chatID, "userId": "z"})
	req.Equal(http.StatusForbidden, status)
	req.Equal("Forbidden", body["kind"])

	status, _ = ts.call(t, nil, http.MethodDelete, "/api/v1/chat/group/"+chatID+"/members/w", x, nil)
	req.Equal(http.StatusOK, status)

	// Three members is the floor
	status, body = ts.call(t, nil, http.MethodPut, "/api/v1/chat/removemember", x, map[string]string{"chatId": chatID, "userId": "z"})
	req.Equal(http.StatusConflict, status)
	req.Equal("PreconditionFailed", body["kind"])
	req.Equal("MinimumMembersViolation", body["reason"])

	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/chat/"+chatID+"?populate=true", y, nil)
	req.Equal(http.StatusOK, status)
	req.Len(body["chat"].(map[string]any)["populatedMembers"], 3)

	status, _ = ts.call(t, nil, http.MethodPut, "/api/v1/chat/"+chatID, x, map[string]string{"name": "renamed"})
	req.Equal(http.StatusOK, status)

	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/chat/my/groups", x, nil)
	req.Equal(http.StatusOK, status)
	groups := body["groups"].([]any)
	req.Len(groups, 1)
	req.Equal("renamed", groups[0].(map[string]any)["name"])

	status, body = ts.call(t, nil, http.MethodDelete, "/api/v1/chat/leave/"+chatID, x, nil)
	req.Equal(http.StatusOK, status)
	req.Equal("Left group successfully", body["message"])

	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/chat/unknown", y, nil)
	req.Equal(http.StatusNotFound, status)
	req.Equal("NotFound", body["kind"])
}

func TestServer_FriendsAndMessages(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	x, y := ts.user(t, "x"), ts.user(t, "y")

	status, _ := ts.call(t, nil, http.MethodPut, "/api/v1/user/sendrequest", x, map[string]string{"userId": "y"})
	req.Equal(http.StatusOK, status)
	status, body := ts.call(t, nil, http.MethodPut, "/api/v1/user/sendrequest", y, map[string]string{"userId": "x"})
	req.Equal(http.StatusConflict, status)
	req.Equal("DuplicateRequest", body["reason"])

	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/user/notifications", y, nil)
	req.Equal(http.StatusOK, status)
	requests := body["allRequests"].([]any)
	req.Len(requests, 1)
	requestID := requests[0].(map[string]any)["_id"].(string)

	status, body = ts.call(t, nil, http.MethodPut, "/api/v1/user/acceptrequest", y, map[string]any{"requestId": requestID})
	req.Equal(http.StatusBadRequest, status)

	status, body = ts.call(t, nil, http.MethodPut, "/api/v1/user/acceptrequest", y, map[string]any{"requestId": requestID, "accept": true})
	req.Equal(http.StatusOK, status)
	req.Equal("x", body["senderId"])
	chatID := body["chatId"].(string)

	// Given two attachments posted to the direct chat
	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	req.NoError(w.WriteField("chatId", chatID))
	req.NoError(w.WriteField("caption", "files"))
	for _, name := range []string{"a.txt", "b.txt"} {
		part, err := w.CreateFormFile("attachments", name)
		req.NoError(err)
		_, err = part.Write([]byte("content of " + name))
		req.NoError(err)
	}
	req.NoError(w.Close())
	r, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/chat/message", &form)
	req.NoError(err)
	r.Header.Set("Content-Type", w.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+x)

	status, body = send(t, nil, r)
	req.Equal(http.StatusOK, status)
	sent := body["message"].(map[string]any)
	req.Len(sent["attachments"], 2)

	// The uploaded blobs are served back
	url := sent["attachments"].([]any)[0].(map[string]any)["url"].(string)
	res, err := http.Get(ts.URL + url)
	req.NoError(err)
	_ = res.Body.Close()
	req.Equal(http.StatusOK, res.StatusCode)

	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/chat/message/"+chatID+"?page=1", y, nil)
	req.Equal(http.StatusOK, status)
	req.Len(body["messages"], 1)
	req.EqualValues(1, body["totalPages"])

	status, _ = ts.call(t, nil, http.MethodGet, "/api/v1/chat/message/"+chatID+"?page=zero", y, nil)
	req.Equal(http.StatusBadRequest, status)

	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/user/friends", x, nil)
	req.Equal(http.StatusOK, status)
	req.Len(body["friends"], 1)

	status, _ = ts.call(t, nil, http.MethodPut, "/api/v1/user/removefriend", x, map[string]string{"friendId": "y"})
	req.Equal(http.StatusOK, status)
	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/chat/my", x, nil)
	req.Equal(http.StatusOK, status)
	req.Empty(body["chats"])
}

func TestServer_Admin(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	userToken := ts.user(t, "x")
	client := jarClient(t)

	status, body := ts.call(t, client, http.MethodPost, "/api/v1/admin/verify", "", map[string]string{"secretKey": "guess"})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal("Unauthorized", body["kind"])

	status, _ = ts.call(t, client, http.MethodGet, "/api/v1/admin/stats", "", nil)
	req.Equal(http.StatusUnauthorized, status)

	// A user token is not an admin token
	status, body = ts.call(t, nil, http.MethodGet, "/api/v1/admin/users", userToken, nil)
	req.Equal(http.StatusForbidden, status)

	status, _ = ts.call(t, client, http.MethodPost, "/api/v1/admin/verify", "", map[string]string{"secretKey": adminKey})
	req.Equal(http.StatusOK, status)

	status, body = ts.call(t, client, http.MethodGet, "/api/v1/admin/", "", nil)
	req.Equal(http.StatusOK, status)
	req.Equal(true, body["admin"])

	status, body = ts.call(t, client, http.MethodGet, "/api/v1/admin/stats", "", nil)
	req.Equal(http.StatusOK, status)
	req.EqualValues(1, body["stats"].(map[string]any)["usersCount"])

	status, body = ts.call(t, client, http.MethodGet, "/api/v1/admin/runtime", "", nil)
	req.Equal(http.StatusOK, status)
	req.Contains(body, "runtime")

	status, body = ts.call(t, client, http.MethodPut, "/api/v1/admin/users/x", "", map[string]string{"bio": "edited"})
	req.Equal(http.StatusOK, status)
	req.Equal("edited", body["user"].(map[string]any)["bio"])

	status, _ = ts.call(t, client, http.MethodDelete, "/api/v1/admin/users/x", "", nil)
	req.Equal(http.StatusOK, status)
	status, _ = ts.call(t, client, http.MethodDelete, "/api/v1/admin/users/x", "", nil)
	req.Equal(http.StatusNotFound, status)

	status, _ = ts.call(t, client, http.MethodGet, "/api/v1/admin/logout", "", nil)
	req.Equal(http.StatusOK, status)
	status, _ = ts.call(t, client, http.MethodGet, "/api/v1/admin/stats", "", nil)
	req.Equal(http.StatusUnauthorized, status)
}

func TestServer_AdminCookieDoesNotReplaceSession(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	client := jarClient(t)
	token := ts.user(t, "x")
	r, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/user/me", nil)
	req.NoError(err)
	client.Jar.SetCookies(r.URL, []*http.Cookie{{Name: auth.CookieName, Value: token, Path: "/"}})

	status, _ := ts.call(t, client, http.MethodPost, "/api/v1/admin/verify", "", map[string]string{"secretKey": adminKey})
	req.Equal(http.StatusOK, status)

	status, _ = send(t, client, r)
	req.Equal(http.StatusOK, status)
}
