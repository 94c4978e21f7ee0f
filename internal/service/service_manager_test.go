package service

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"messenger/internal/config"
	"messenger/internal/logger"
	"messenger/internal/middleware"
	"messenger/internal/protocol"
	"messenger/internal/router"
	"messenger/internal/ws"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Redis.Host = ""
	return cfg
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c apiClient) do(method, path, body string) (int, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func login(t *testing.T, cfg *config.Config, base, email, name string) apiClient {
	t.Helper()
	token, err := middleware.GenerateToken(cfg.JWT.Secret, cfg.JWT.Issuer, email, name, time.Hour)
	require.NoError(t, err)
	return apiClient{t: t, base: base, token: token}
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var f ws.Frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == ws.FrameEvent {
			require.NotNil(t, f.Event)
			return *f.Event
		}
	}
}

func TestEndToEndConversation(t *testing.T) {
	cfg := testConfig()
	log := logger.Nop()
	m, err := NewManager(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	srv := httptest.NewServer(router.SetupRouter(m.Handlers(), cfg.Server.AllowOrigins, log))
	t.Cleanup(srv.Close)

	alice := login(t, cfg, srv.URL, "alice@x.com", "Alice")
	bob := login(t, cfg, srv.URL, "bob@y.com", "Bob")

	code, body := alice.do(http.MethodPost, "/api/register", `{"first_name":"Alice","last_name":"Liddell"}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	code, body = bob.do(http.MethodPost, "/api/accounts", `{"first_name":"Bob"}`)
	require.Equal(t, http.StatusCreated, code, string(body))

	// bob 在线，事件直接推送到他的连接
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + bob.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return m.Hub().Connected("bob-y-com") == 1 }, 2*time.Second, 10*time.Millisecond)

	code, body = alice.do(http.MethodPost, "/api/conversations",
		`{"recipient_email":"bob@y.com","message":{"id":"m1","type":"text","content":"hello"}}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	event := readEvent(t, conn)
	assert.Equal(t, "conversation_m1", event.ConversationID)
	assert.Equal(t, "m1", event.MessageID)
	assert.Equal(t, "bob-y-com", event.RecipientID)

	code, body = alice.do(http.MethodPost, "/api/messages/conversation_m1", `{"id":"m2","type":"text","content":"are you there?"}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	assert.Equal(t, "m2", readEvent(t, conn).MessageID)

	code, body = bob.do(http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, code)
	var summaries []protocol.SummaryRecord
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "conversation_m1", summaries[0].ID)
	assert.Equal(t, "alice-x-com", summaries[0].OtherUserEmail)
	assert.Equal(t, "are you there?", summaries[0].LatestMessage.Message)

	code, body = bob.do(http.MethodGet, "/api/messages/conversation_m1", "")
	require.Equal(t, http.StatusOK, code)
	var messages []protocol.MessageRecord
	require.NoError(t, json.Unmarshal(body, &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)

	code, body = bob.do(http.MethodGet, "/api/status/alice@x.com", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"status":"offline"`)
	code, body = bob.do(http.MethodGet, "/api/status/bob@y.com", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"status":"online"`)

	// 媒体未启用时没有上传路由
	code, _ = alice.do(http.MethodPost, "/api/media/photos", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	cfg := testConfig()
	m, err := NewManager(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	srv := httptest.NewServer(router.SetupRouter(m.Handlers(), nil, logger.Nop()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/conversations")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRedisBackedManager(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Redis.Host = host
	cfg.Redis.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.Index.Backend = config.BackendRedis
	cfg.Notify.Driver = config.NotifyRedis

	m, err := NewManager(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	m.Shutdown()
	// 重复关闭是安全的
	m.Shutdown()
}

func TestRequiredRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	mr.Close()

	cfg := testConfig()
	cfg.Redis.Host = host
	cfg.Redis.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.Index.Backend = config.BackendRedis

	_, err = NewManager(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}
