package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mfduar8766/browserautomation/internal/domain/logrouter"
	"github.com/mfduar8766/browserautomation/internal/domain/navigation"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/monitoring"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/events", hub.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]interface{}
	require.NoError(t, sonic.Unmarshal(data, &frame))
	return frame
}

func TestHubWelcomeAndReplies(t *testing.T) {
	hub := NewHub()
	conn := dial(t, newTestServer(t, hub))

	welcome := readFrame(t, conn)
	assert.Equal(t, TypeSystem, welcome["type"])
	assert.True(t, strings.HasPrefix(welcome["observer_id"].(string), "obs_"))
	assert.NotEmpty(t, welcome["id"])

	tests := []struct {
		name     string
		send     string
		wantType string
		wantMsg  string
	}{
		{name: "ping", send: `{"type":"ping"}`, wantType: TypePong},
		{name: "unknown type", send: `{"type":"subscribe"}`, wantType: TypeError, wantMsg: "unknown message type"},
		{name: "malformed", send: `not json`, wantType: TypeError, wantMsg: "invalid message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.send)))
			frame := readFrame(t, conn)
			assert.Equal(t, tt.wantType, frame["type"])
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, frame["message"])
			}
		})
	}
}

func TestHubBroadcastsObservations(t *testing.T) {
	hub := NewHub()
	url := newTestServer(t, hub)

	first := dial(t, url)
	second := dial(t, url)
	readFrame(t, first)
	readFrame(t, second)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	from := navigation.State{Status: navigation.StatusIdle}
	to := navigation.State{Status: navigation.StatusLoading, URL: "https://example.com"}
	hub.NavigationObserver()(from, to)

	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		assert.Equal(t, TypeNavigation, frame["type"])
		assert.Equal(t, "idle", frame["from"].(map[string]interface{})["status"])
		toFrame := frame["to"].(map[string]interface{})
		assert.Equal(t, "loading", toFrame["status"])
		assert.Equal(t, "https://example.com", toFrame["url"])
	}
}

func TestHubLogObserver(t *testing.T) {
	hub := NewHub()
	conn := dial(t, newTestServer(t, hub))
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	observe := hub.LogObserver()

	tests := []struct {
		name      string
		event     logrouter.Event
		level     logrouter.Level
		wantLevel string
	}{
		{name: "classified", event: logrouter.Event{Level: "warn", Message: "careful"}, level: logrouter.LevelWarn, wantLevel: "warn"},
		{name: "unknown keeps raw level", event: logrouter.Event{Level: "debug", Message: "trace"}, level: logrouter.LevelUnknown, wantLevel: "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observe(tt.event, tt.level)
			frame := readFrame(t, conn)
			assert.Equal(t, TypeLog, frame["type"])
			assert.Equal(t, tt.wantLevel, frame["level"])
			assert.Equal(t, tt.event.Message, frame["message"])
		})
	}
}

func TestHubMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	hub := NewHub(WithMetrics(metrics))
	conn := dial(t, newTestServer(t, hub))
	readFrame(t, conn)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WSConnections) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WSMessages.WithLabelValues("out", TypeSystem)))

	conn.Close()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WSConnections) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Clients())
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	conn := dial(t, newTestServer(t, hub))
	readFrame(t, conn)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, hub.Clients())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/events", nil)
	hub.Handle(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
