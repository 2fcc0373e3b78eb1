package redis

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

func setupOverlay(t *testing.T, staleAfter time.Duration) (*HealthOverlay, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewHealthOverlay(rdb, staleAfter, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func gateways() []*domain.GatewayConnection {
	return []*domain.GatewayConnection{
		{ID: 1, Code: "MCI-1", Status: domain.StatusDisconnected, Mode: domain.RouteModeActive, DeliveryRate: 0},
		{ID: 2, Code: "IRC-1", Status: domain.StatusConnected, Mode: domain.RouteModeActive, DeliveryRate: 99},
	}
}

func TestHealthOverlay_Apply(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("OverlaysKnownGateways", func(t *testing.T) {
		overlay, mr := setupOverlay(t, 0)
		mr.HSet(HealthKeyPrefix+"MCI-1",
			"status", "CONNECTED",
			"delivery_rate", "97.25",
			"current_tps", "41.5",
			"last_heartbeat", now.Format(time.RFC3339),
		)

		in := gateways()
		out, err := overlay.Apply(context.Background(), in)
		require.NoError(t, err)
		require.Len(t, out, 2)

		assert.Equal(t, domain.StatusConnected, out[0].Status)
		assert.InDelta(t, 97.25, out[0].DeliveryRate, 1e-9)
		assert.InDelta(t, 41.5, out[0].CurrentTPS, 1e-9)
		require.NotNil(t, out[0].LastHeartbeat)
		assert.True(t, now.Equal(*out[0].LastHeartbeat))

		// no hash for IRC-1: stored values survive
		assert.Equal(t, domain.StatusConnected, out[1].Status)
		assert.InDelta(t, 99.0, out[1].DeliveryRate, 1e-9)

		// input untouched
		assert.Equal(t, domain.StatusDisconnected, in[0].Status)
		assert.NotSame(t, in[0], out[0])
	})

	t.Run("StaleHeartbeatDisconnects", func(t *testing.T) {
		overlay, mr := setupOverlay(t, time.Minute)
		overlay.now = func() time.Time { return now }
		mr.HSet(HealthKeyPrefix+"IRC-1",
			"status", "CONNECTED",
			"last_heartbeat", strconv.FormatInt(now.Add(-5*time.Minute).Unix(), 10),
		)
		mr.HSet(HealthKeyPrefix+"MCI-1",
			"status", "CONNECTED",
			"last_heartbeat", strconv.FormatInt(now.Add(-10*time.Second).Unix(), 10),
		)

		out, err := overlay.Apply(context.Background(), gateways())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConnected, out[0].Status)
		assert.Equal(t, domain.StatusDisconnected, out[1].Status)
	})

	t.Run("MalformedFieldsIgnored", func(t *testing.T) {
		overlay, mr := setupOverlay(t, 0)
		mr.HSet(HealthKeyPrefix+"IRC-1", "delivery_rate", "n/a", "last_heartbeat", "yesterday", "route_mode", "STANDBY")

		out, err := overlay.Apply(context.Background(), gateways())
		require.NoError(t, err)
		assert.InDelta(t, 99.0, out[1].DeliveryRate, 1e-9)
		assert.Nil(t, out[1].LastHeartbeat)
		assert.Equal(t, domain.RouteModeStandby, out[1].Mode)
	})

	t.Run("RedisDown", func(t *testing.T) {
		overlay, mr := setupOverlay(t, 0)
		mr.Close()

		out, err := overlay.Apply(context.Background(), gateways())
		assert.Error(t, err)
		assert.Nil(t, out)
	})

	t.Run("Empty", func(t *testing.T) {
		overlay, _ := setupOverlay(t, 0)
		out, err := overlay.Apply(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
