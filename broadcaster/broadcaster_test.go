package broadcaster

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcaster_RelaysEventToDestination(t *testing.T) {
	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer sink.Close()

	registry := metric.NewMetricsRegistry()
	b, err := New(sink.LocalAddr().String(), registry.CoreMetrics(), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	b.Events() <- message.Event{Data: map[string]any{"kind": "status_update", "value": 42.0}}

	buf := make([]byte, 4096)
	require.NoError(t, sink.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := sink.ReadFromUDP(buf)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf[:n], &got))
	assert.Equal(t, "status_update", got["kind"])
	assert.Equal(t, 42.0, got["value"])
}
