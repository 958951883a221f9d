// Package config loads and validates the gateway's JSON configuration file:
// the command port, the set of MSC agent endpoints, and the (parsed but
// otherwise unconsumed) stream port declarations.
//
// Validation is manual and fail-fast, field by field, mirroring how the
// system this gateway replaces validated its own config: the first missing
// or mistyped field aborts the load with a descriptive error rather than
// accumulating a report.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"log/slog"

	"github.com/c360/gatekit/errors"
)

const (
	defaultAgentQueueSize = 1000
	defaultAgentTimeoutMs = 2000
)

// AgentSettings holds per-agent tuning, defaulted when absent from the file.
type AgentSettings struct {
	QueueSize        int `json:"queue_size"`
	DefaultTimeoutMs int `json:"default_timeout_ms"`
}

// CmdSettings describes the command port: where commands arrive, where
// provisional acks and broadcast events are sent, and how long the
// dispatcher waits for MSC replies before timing a request out.
type CmdSettings struct {
	LocalAddress      string
	RemoteAddress     string
	ResponseTimeoutMs int
	AgentSettings     *AgentSettings
}

// MSCAgentSettings describes one MSC endpoint the gateway forwards
// sub-commands to and receives packets from.
type MSCAgentSettings struct {
	ID                string
	LocalAddress      string
	RemoteAddress     string
	ResponseTimeoutMs int
	AgentSettings     *AgentSettings
}

// StreamPortSettings describes a declared stream port. The gateway parses
// and validates these but does not route traffic through them.
type StreamPortSettings struct {
	ID            string
	LocalAddress  string
	RemoteAddress string
	Format        string
}

// Config is the fully parsed, validated configuration for one gateway
// process. It is immutable for the lifetime of the process.
type Config struct {
	Cmd         CmdSettings
	MSCAgents   []MSCAgentSettings
	StreamPorts []StreamPortSettings
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "read config file")
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parse JSON")
	}

	return parse(raw)
}

// LogFields logs the parsed configuration at debug level, for --test-mode.
func (c *Config) LogFields(logger *slog.Logger) {
	logger.Debug("config: cmd",
		"local_address", c.Cmd.LocalAddress,
		"remote_address", c.Cmd.RemoteAddress,
		"response_timeout_ms", c.Cmd.ResponseTimeoutMs)
	for _, a := range c.MSCAgents {
		logger.Debug("config: msc_agent",
			"id", a.ID,
			"local_address", a.LocalAddress,
			"remote_address", a.RemoteAddress,
			"response_timeout_ms", a.ResponseTimeoutMs)
	}
	for _, s := range c.StreamPorts {
		logger.Debug("config: stream_port",
			"id", s.ID,
			"local_address", s.LocalAddress,
			"remote_address", s.RemoteAddress,
			"format", s.Format)
	}
}

func parse(raw map[string]any) (*Config, error) {
	cmdRaw, ok := raw["cmd"].(map[string]any)
	if !ok {
		return nil, invalidField("cmd")
	}
	cmd, err := parseCmd(cmdRaw)
	if err != nil {
		return nil, err
	}

	mscRaw, ok := raw["msc_agent"].([]any)
	if !ok {
		return nil, invalidField("msc_agent")
	}
	mscAgents, err := parseMSCAgents(mscRaw)
	if err != nil {
		return nil, err
	}

	streamRaw, ok := raw["stream_ports"].([]any)
	if !ok {
		return nil, invalidField("stream_ports")
	}
	streamPorts, err := parseStreamPorts(streamRaw)
	if err != nil {
		return nil, err
	}

	return &Config{Cmd: cmd, MSCAgents: mscAgents, StreamPorts: streamPorts}, nil
}

func parseCmd(raw map[string]any) (CmdSettings, error) {
	local, ok := raw["local_address"].(string)
	if !ok {
		return CmdSettings{}, invalidField("cmd.local_address")
	}
	remote, ok := raw["remote_address"].(string)
	if !ok {
		return CmdSettings{}, invalidField("cmd.remote_address")
	}
	timeout, ok := asInt(raw["response_timeout_ms"])
	if !ok {
		return CmdSettings{}, invalidField("cmd.response_timeout_ms")
	}

	cmd := CmdSettings{LocalAddress: local, RemoteAddress: remote, ResponseTimeoutMs: timeout}
	if settingsRaw, ok := raw["agent_settings"].(map[string]any); ok {
		cmd.AgentSettings = parseAgentSettings(settingsRaw)
	}
	return cmd, nil
}

func parseMSCAgents(raw []any) ([]MSCAgentSettings, error) {
	agents := make([]MSCAgentSettings, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalidField(fmt.Sprintf("msc_agent[%d]", i))
		}
		id, ok := obj["id"].(string)
		if !ok || id == "" {
			return nil, invalidField(fmt.Sprintf("msc_agent[%d].id", i))
		}
		if seen[id] {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "parseMSCAgents",
				fmt.Sprintf("duplicate msc_agent id %q", id))
		}
		seen[id] = true

		local, ok := obj["local_address"].(string)
		if !ok {
			return nil, invalidField(fmt.Sprintf("msc_agent[%d].local_address", i))
		}
		remote, ok := obj["remote_address"].(string)
		if !ok {
			return nil, invalidField(fmt.Sprintf("msc_agent[%d].remote_address", i))
		}
		timeout, ok := asInt(obj["response_timeout_ms"])
		if !ok {
			return nil, invalidField(fmt.Sprintf("msc_agent[%d].response_timeout_ms", i))
		}

		agent := MSCAgentSettings{ID: id, LocalAddress: local, RemoteAddress: remote, ResponseTimeoutMs: timeout}
		if settingsRaw, ok := obj["agent_settings"].(map[string]any); ok {
			agent.AgentSettings = parseAgentSettings(settingsRaw)
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

func parseStreamPorts(raw []any) ([]StreamPortSettings, error) {
	ports := make([]StreamPortSettings, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalidField(fmt.Sprintf("stream_ports[%d]", i))
		}
		id, ok := obj["id"].(string)
		if !ok || id == "" {
			return nil, invalidField(fmt.Sprintf("stream_ports[%d].id", i))
		}
		if seen[id] {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "parseStreamPorts",
				fmt.Sprintf("duplicate stream_ports id %q", id))
		}
		seen[id] = true

		local, ok := obj["local_address"].(string)
		if !ok {
			return nil, invalidField(fmt.Sprintf("stream_ports[%d].local_address", i))
		}
		remote, ok := obj["remote_address"].(string)
		if !ok {
			return nil, invalidField(fmt.Sprintf("stream_ports[%d].remote_address", i))
		}
		format, ok := obj["format"].(string)
		if !ok {
			return nil, invalidField(fmt.Sprintf("stream_ports[%d].format", i))
		}

		ports = append(ports, StreamPortSettings{ID: id, LocalAddress: local, RemoteAddress: remote, Format: format})
	}
	return ports, nil
}

func parseAgentSettings(raw map[string]any) *AgentSettings {
	s := &AgentSettings{QueueSize: defaultAgentQueueSize, DefaultTimeoutMs: defaultAgentTimeoutMs}
	if v, ok := asInt(raw["queue_size"]); ok {
		s.QueueSize = v
	}
	if v, ok := asInt(raw["default_timeout_ms"]); ok {
		s.DefaultTimeoutMs = v
	}
	return s
}

// asInt extracts an integer from a decoded JSON number (always float64).
func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func invalidField(field string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "parse", fmt.Sprintf("missing or invalid field %q", field))
}
