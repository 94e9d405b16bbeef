package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/supportchat-server/internal/bot"
	"github.com/vovakirdan/supportchat-server/internal/proto"
)

func TestHealthRootAndMetrics(t *testing.T) {
	env := startTestServer(t)

	code, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", string(body))

	code, _ = env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, code)

	env.createUser(t, "u1")
	code, body = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `supportchat_http_requests_total{code="200",route="/user"} 1`)
	assert.Contains(t, string(body), "supportchat_ws_clients 0")
}

func TestCORSPreflight(t *testing.T) {
	env := startTestServer(t, func(c *configT) { c.AllowedOrigins = []string{"http://localhost:4200"} })

	req, err := http.NewRequest(http.MethodOptions, env.ts.URL+"/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:4200")
	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:4200", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, err = http.NewRequest(http.MethodOptions, env.ts.URL+"/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = env.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	env := startTestServer(t)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://anything.example")
	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "http://anything.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestUserEndpoints(t *testing.T) {
	env := startTestServer(t)

	code, body := env.do(t, http.MethodPost, "/api/user", map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "userId and username are required")

	env.createUser(t, "u1")
	env.createUser(t, "u2")

	code, body = env.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]proto.User](t, body), 2)

	code, body = env.do(t, http.MethodGet, "/users/u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u1", decode[proto.User](t, body).UserID)

	code, body = env.do(t, http.MethodGet, "/users/ghost", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", decode[ErrorResponse](t, body).Error)

	code, _ = env.do(t, http.MethodDelete, "/users/u1", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, "/users/u1", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodDelete, "/api/users/all", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"deletedCount":1`)
}

func TestWelcomeOnUserLookup(t *testing.T) {
	env := startTestServer(t, func(c *configT) { c.WelcomeMessage = true })
	env.createUser(t, "u1")

	_, body := env.do(t, http.MethodGet, "/users/u1", nil)
	user := decode[proto.User](t, body)
	require.Len(t, user.Messages, 1)
	assert.Equal(t, bot.WelcomeMessage, user.Messages[0].Content)

	_, body = env.do(t, http.MethodGet, "/users/u1", nil)
	assert.Len(t, decode[proto.User](t, body).Messages, 1)
}

func TestPostChatJSON(t *testing.T) {
	env := startTestServer(t)
	env.createUser(t, "u1")

	code, body := env.do(t, http.MethodPost, "/chat", map[string]string{"userId": "u1", "message": "hello"})
	require.Equal(t, http.StatusOK, code, string(body))
	resp := decode[ChatResponse](t, body)
	require.NotNil(t, resp.UserMessage)
	require.NotNil(t, resp.BotMessage)
	assert.Less(t, resp.UserMessage.ID, resp.BotMessage.ID)
	assert.Equal(t, bot.DefaultRules[0].Reply, resp.BotResponse)

	code, body = env.do(t, http.MethodPost, "/api/chat", map[string]string{"userId": "u1", "message": "xyz123"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, bot.EscalationReply, decode[ChatResponse](t, body).BotResponse)

	env.clock.Add(2 * time.Minute)
	code, body = env.do(t, http.MethodPost, "/chat", map[string]string{"userId": "u1", "message": "hello"})
	require.Equal(t, http.StatusOK, code)
	resp = decode[ChatResponse](t, body)
	assert.NotNil(t, resp.UserMessage)
	assert.Nil(t, resp.BotMessage)

	code, body = env.do(t, http.MethodPost, "/chat", map[string]string{"userId": "u1", "message": "agent here", "adminId": "alice"})
	require.Equal(t, http.StatusOK, code)
	resp = decode[ChatResponse](t, body)
	require.NotNil(t, resp.AdminMessage)
	assert.Equal(t, "alice", resp.AdminMessage.SenderID)
	assert.Nil(t, resp.BotMessage)

	code, body = env.do(t, http.MethodGet, "/chat/history/u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]proto.Message](t, body), 6)

	code, body = env.do(t, http.MethodPost, "/chat/history", map[string]string{"userId": "u1"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]proto.Message](t, body), 6)
}

func TestPostChatErrors(t *testing.T) {
	env := startTestServer(t)
	env.createUser(t, "u1")

	code, _ := env.do(t, http.MethodPost, "/chat", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/chat", map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/chat", map[string]string{"userId": "ghost", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/chat/history", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func multipartChat(t *testing.T, env *testEnv, userID, text string, file []byte) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("userId", userID))
	if text != "" {
		require.NoError(t, w.WriteField("message", text))
	}
	part, err := w.CreateFormFile("file", "report.txt")
	require.NoError(t, err)
	_, err = part.Write(file)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/chat", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return env.send(t, req)
}

func TestPostChatWithFile(t *testing.T) {
	env := startTestServer(t)
	env.createUser(t, "u1")

	code, body := multipartChat(t, env, "u1", "", []byte("hello file"))
	require.Equal(t, http.StatusOK, code, string(body))
	resp := decode[ChatResponse](t, body)
	assert.Equal(t, bot.FileAckReply, resp.BotResponse)
	assert.True(t, strings.HasPrefix(resp.FileData, "data:"))
	require.NotNil(t, resp.UserMessage.File)
	assert.Equal(t, "report.txt", resp.UserMessage.File.OriginalName)
}

func TestPostChatFileTooLarge(t *testing.T) {
	env := startTestServer(t, func(c *configT) { c.MaxUploadBytes = 1024 })
	env.createUser(t, "u1")

	code, body := multipartChat(t, env, "u1", "big", bytes.Repeat([]byte("x"), 2048))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "File size too large. Maximum size is 1.0 KiB.", decode[ErrorResponse](t, body).Error)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestPostChatOversizedBodyIsCutOff(t *testing.T) {
	env := startTestServer(t, func(c *configT) { c.MaxUploadBytes = 1024 })
	env.createUser(t, "u1")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("userId", "u1"))
	part, err := w.CreateFormFile("file", "huge.bin")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 4<<20))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	total := int64(buf.Len())

	body := &countingReader{r: &buf}
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File size too large. Maximum size is 1.0 KiB.", decode[ErrorResponse](t, rec.Body.Bytes()).Error)
	assert.Less(t, body.n, int64(1024+formOverhead+64<<10), "read %d of %d bytes", body.n, total)
}

func TestModerationEndpoints(t *testing.T) {
	env := startTestServer(t)
	env.createUser(t, "u1")
	env.createUser(t, "u2")

	_, body := env.do(t, http.MethodPost, "/chat", map[string]string{"userId": "u1", "message": "hello"})
	first := decode[ChatResponse](t, body)
	env.do(t, http.MethodPost, "/chat", map[string]string{"userId": "u2", "message": "hi"})

	path := fmt.Sprintf("/chat/message/%d", first.UserMessage.ID)
	code, body := env.do(t, http.MethodPut, path, map[string]string{"content": "hello there"})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), "hello there")

	code, body = env.do(t, http.MethodPut, path+"/edit", map[string]string{"content": "hey", "adminId": "a1", "reason": "tone"})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), `"originalContent":"hello there"`)

	code, _ = env.do(t, http.MethodPut, path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPut, "/chat/message/abc", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPut, "/chat/message/99999", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodGet, "/chat/unread-counts", nil)
	require.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []proto.UnreadCount{{UserID: "u1", UnreadCount: 1}, {UserID: "u2", UnreadCount: 1}}, decode[[]proto.UnreadCount](t, body))

	code, body = env.do(t, http.MethodPut, "/chat/read/u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"count":1`)
	_, body = env.do(t, http.MethodPut, "/chat/read/u1", nil)
	assert.Contains(t, string(body), `"count":0`)

	code, body = env.do(t, http.MethodPut, "/chat/read/message/99999", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null", string(body))

	code, _ = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodDelete, "/chat/messages/user/u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"deletedCount":1`)

	code, _ = env.do(t, http.MethodDelete, "/chat/messages/all", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodDelete, "/api/chat/messages/all", map[string]string{"adminId": "root"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"totalMessagesDeleted":2`)
	assert.Contains(t, string(body), `"u2":2`)
}
