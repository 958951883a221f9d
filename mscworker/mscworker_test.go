package mscworker

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

	"github.com/c360/gatekit/health"
	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T, agentConn *net.UDPConn) (*Worker, chan message.AgentReply, chan message.Event) {
	t.Helper()
	replyCh := make(chan message.AgentReply, 16)
	eventCh := make(chan message.Event, 16)
	registry := metric.NewMetricsRegistry()
	w, err := New("agent-1", agentConn.LocalAddr().String(), 16, replyCh, eventCh, registry.CoreMetrics(), health.NewMonitor(), discardLogger())
	require.NoError(t, err)
	return w, replyCh, eventCh
}

func TestWorker_SubCommandForwardsAndAcksOptimistically(t *testing.T) {
	agent, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer agent.Close()

	w, replyCh, _ := newTestWorker(t, agent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	w.SubCommands() <- message.SubCommand{Command: map[string]any{"command": "ping"}, RequestID: "req_1", TargetID: "agent-1"}

	select {
	case reply := <-replyCh:
		assert.Equal(t, "req_1", reply.RequestID)
		assert.Equal(t, "agent-1", reply.AgentID)
		assert.True(t, reply.Success)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for optimistic ack")
	}

	buf := make([]byte, 4096)
	require.NoError(t, agent.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := agent.ReadFromUDP(buf)
	require.NoError(t, err)
	var forwarded map[string]any
	require.NoError(t, json.Unmarshal(buf[:n], &forwarded))
	assert.Equal(t, "ping", forwarded["command"])
}

func TestWorker_InboundPacketWithRequestIDClassifiesAsReply(t *testing.T) {
	agent, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer agent.Close()

	w, replyCh, _ := newTestWorker(t, agent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	body, _ := json.Marshal(map[string]any{"request_id": "req_2", "result": "done"})
	w.Enqueue(message.Packet{Payload: body, Origin: "msc_agent-1"})

	select {
	case reply := <-replyCh:
		assert.Equal(t, "req_2", reply.RequestID)
		assert.Equal(t, "done", reply.Response["result"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for classified reply")
	}
}

func TestWorker_InboundPacketWithoutRequestIDClassifiesAsEvent(t *testing.T) {
	agent, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer agent.Close()

	w, _, eventCh := newTestWorker(t, agent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	body, _ := json.Marshal(map[string]any{"kind": "heartbeat"})
	w.Enqueue(message.Packet{Payload: body, Origin: "msc_agent-1"})

	select {
	case ev := <-eventCh:
		assert.Equal(t, "heartbeat", ev.Data["kind"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
