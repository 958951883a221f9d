package responder

import (
	"context"
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

func TestResponder_DeliversToDestination(t *testing.T) {
	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer sink.Close()

	registry := metric.NewMetricsRegistry()
	r, err := New(registry.CoreMetrics(), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	destination := sink.LocalAddr().(*net.UDPAddr)
	r.FinalResponses() <- message.FinalResponse{ResponseJSON: []byte(`{"status":"completed"}`), Destination: destination}

	buf := make([]byte, 4096)
	require.NoError(t, sink.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := sink.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"completed"}`, string(buf[:n]))
}
