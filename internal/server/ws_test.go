package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"go-pos-api/internal/model"
	"go-pos-api/internal/service"
	"go-pos-api/internal/testutil"
	"go-pos-api/internal/ws"
	"go-pos-api/pkg/jwt"

	fws "github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebSocket_ReceivesTenantEvents(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "Kedai WS")
	testutil.CreateUser(t, db, tenant.ID, "admin@ws.test", model.RoleAdmin)
	otherTenant := testutil.CreateTenant(t, db, "Kedai Lain")
	testutil.CreateUser(t, db, otherTenant.ID, "admin@lain.test", model.RoleAdmin)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(zap.NewNop())
	go hub.Run(ctx)

	app := New(Deps{
		DB:        db,
		Log:       zap.NewNop(),
		Tokens:    jwt.NewManager("test-secret", time.Hour),
		Hub:       hub,
		IdleLimit: time.Hour,
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	api := apiClient{t: t, app: app}
	token := api.login("admin@ws.test")
	otherToken := api.login("admin@lain.test")

	base := "ws://" + ln.Addr().String() + "/ws?token="
	_, resp, err := fws.DefaultDialer.Dial(base+"bogus", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	conn, _, err := fws.DefaultDialer.Dial(base+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	otherConn, _, err := fws.DefaultDialer.Dial(base+otherToken, nil)
	require.NoError(t, err)
	defer otherConn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount(tenant.ID) == 1 && hub.ClientCount(otherTenant.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	status, body := api.do(http.MethodPost, "/api/v1/products", token, map[string]interface{}{"name": "Kopi", "sku": "K-1", "price": 8000})
	require.Equal(t, http.StatusCreated, status, body)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var event ws.Event
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, service.EventProductCreated, event.Type)
	assert.Equal(t, tenant.ID, event.TenantID)

	// the other store hears nothing
	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = otherConn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_PublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := ws.NewHub(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(uuid.New(), service.EventStockUpdate, map[string]int{"i": i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	var nilHub *ws.Hub
	assert.NotPanics(t, func() { nilHub.Publish(uuid.New(), "x", nil) })
}
