package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	"github.com/oasistrek/tourops-api/internal/service"
)

const realtimeTestSecret = "realtime-test-secret"

func newRealtimeServer(t *testing.T) (string, *realtime.Feed) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	feed := realtime.New(realtime.Config{DebounceWindow: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	feed.Start(ctx)
	t.Cleanup(func() {
		feed.Stop()
		cancel()
	})

	auth := service.NewAuthService(nil, nil, nil, nil, nil, service.AuthConfig{
		AccessTokenSecret: realtimeTestSecret,
		AccessTokenExpiry: time.Hour,
	})
	handler := NewRealtimeHandler(auth, feed, nil)

	router := gin.New()
	router.GET("/ws/changes", handler.Changes)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/changes", feed
}

func mintAccessToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	claims := &models.JWTClaims{
		UserID:   "u1",
		Role:     role,
		FullName: "Test User",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(realtimeTestSecret))
	require.NoError(t, err)
	return signed
}

func TestRealtimeHandlerRejectsMissingToken(t *testing.T) {
	url, _ := newRealtimeServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Equal(t, websocket.ErrBadHandshake, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRealtimeHandlerRejectsTouristRole(t *testing.T) {
	url, _ := newRealtimeServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(url+"?token="+mintAccessToken(t, models.RoleTourist), nil)
	require.Equal(t, websocket.ErrBadHandshake, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRealtimeHandlerStreamsUpdates(t *testing.T) {
	url, feed := newRealtimeServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(url+"?token="+mintAccessToken(t, models.RoleAdmin), nil)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	defer conn.Close()      //nolint:errcheck

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var hello []models.CollectionUpdate
	require.NoError(t, conn.ReadJSON(&hello))
	require.Len(t, hello, 4)
	for _, update := range hello {
		assert.Zero(t, update.Version)
	}

	feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: "g1"})

	var batch []models.CollectionUpdate
	require.NoError(t, conn.ReadJSON(&batch))
	require.Len(t, batch, 1)
	assert.Equal(t, models.CollectionGuides, batch[0].Collection)
	assert.Equal(t, uint64(1), batch[0].Version)
}
