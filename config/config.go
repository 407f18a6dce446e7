package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c360/magicportal/errors"
)

// Mode selects the direction the bridge runs in.
type Mode string

// Supported modes
const (
	ModeAgent     Mode = "agent"     // NATS -> UDP
	ModeForwarder Mode = "forwarder" // multicast UDP -> NATS
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAgent:
		return ModeAgent, nil
	case ModeForwarder:
		return ModeForwarder, nil
	case "":
		return "", errors.WrapKind(errors.ErrConfiguration, nil, "Config", "ParseMode", "mode is required")
	default:
		return "", errors.WrapKind(errors.ErrConfiguration, nil, "Config", "ParseMode",
			fmt.Sprintf("unknown mode %q (must be agent or forwarder)", s))
	}
}

// Failure policies for the group supervisor
const (
	FailurePolicyContinue = "continue"
	FailurePolicyAbort    = "abort"
)

// DefaultMaxPacketSize bounds the forwarder receive buffer when unset.
const DefaultMaxPacketSize = 1024

// Config represents the complete application configuration
type Config struct {
	Mode            Mode            `json:"mode"`
	NATS            NATSConfig      `json:"nats"`
	Agent           AgentConfig     `json:"agent"`
	Forwarder       ForwarderConfig `json:"forwarder"`
	MulticastGroups []GroupConfig   `json:"multicast_groups,omitempty"`
	MaxPacketSize   int             `json:"max_packet_size"`
	FailurePolicy   string          `json:"failure_policy,omitempty"`
	Health          HealthConfig    `json:"health"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	Name          string        `json:"name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	AuthEnabled   bool          `json:"auth_enabled,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	TLS           NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig for secure NATS connections. In files it is either a bare
// bool ("tls": true requires TLS) or an object with certificate paths.
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// UnmarshalJSON accepts both the bool and the object form.
func (t *NATSTLSConfig) UnmarshalJSON(data []byte) error {
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*t = NATSTLSConfig{Enabled: enabled}
		return nil
	}

	type plain NATSTLSConfig
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("nats.tls must be a bool or an object: %w", err)
	}
	*t = NATSTLSConfig(obj)
	return nil
}

// AgentConfig controls how the agent re-emits bus messages.
// UnicastAddrs stays nil when the file does not mention it, which is
// distinct from an empty map.
type AgentConfig struct {
	SendAsUnicast     bool              `json:"send_as_unicast"`
	UnicastAddrs      map[string]string `json:"unicast_addrs,omitempty"`
	MulticastTTL      int               `json:"multicast_ttl,omitempty"`
	MulticastLoopback *bool             `json:"multicast_loopback,omitempty"`
}

// ForwarderConfig holds forwarder-only socket tuning.
type ForwarderConfig struct {
	ReadBuffer int `json:"read_buffer,omitempty"` // SO_RCVBUF in bytes, 0 keeps the OS default
}

// GroupConfig names one multicast group. Interface is only used by the forwarder.
type GroupConfig struct {
	MulticastAddr string `json:"multicast_addr"`
	Interface     string `json:"interface,omitempty"`
}

// HealthConfig controls the metrics and health endpoint.
type HealthConfig struct {
	Port int `json:"port,omitempty"` // 0 disables the endpoint
}

// Validate checks if the config is valid. Mode is normalized and an unset
// MaxPacketSize is defaulted in place. Whether every group has a unicast
// destination is deliberately not checked here; that failure belongs to the
// agent task for the affected group.
func (c *Config) Validate() error {
	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return err
	}
	c.Mode = mode

	if err := c.NATS.validate(); err != nil {
		return err
	}

	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = DefaultMaxPacketSize
	}
	if c.MaxPacketSize < 0 {
		return invalid(fmt.Sprintf("max_packet_size must be positive, got %d", c.MaxPacketSize))
	}

	switch c.FailurePolicy {
	case "":
		c.FailurePolicy = FailurePolicyContinue
	case FailurePolicyContinue, FailurePolicyAbort:
	default:
		return invalid(fmt.Sprintf("failure_policy %q must be continue or abort", c.FailurePolicy))
	}

	for i, g := range c.MulticastGroups {
		if strings.TrimSpace(g.MulticastAddr) == "" {
			return invalid(fmt.Sprintf("multicast_groups[%d].multicast_addr is required", i))
		}
		if c.Mode == ModeForwarder && strings.TrimSpace(g.Interface) == "" {
			return invalid(fmt.Sprintf("multicast_groups[%d].interface is required in forwarder mode", i))
		}
	}

	if c.Agent.MulticastTTL < 0 || c.Agent.MulticastTTL > 255 {
		return invalid(fmt.Sprintf("agent.multicast_ttl %d out of range 0-255", c.Agent.MulticastTTL))
	}
	if c.Forwarder.ReadBuffer < 0 {
		return invalid("forwarder.read_buffer must not be negative")
	}
	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return invalid(fmt.Sprintf("health.port %d out of range", c.Health.Port))
	}

	return nil
}

func (n *NATSConfig) validate() error {
	if len(n.URLs) == 0 {
		return invalid("nats.urls is required")
	}
	for i, u := range n.URLs {
		if strings.TrimSpace(u) == "" {
			return invalid(fmt.Sprintf("nats.urls[%d] is empty", i))
		}
	}

	if n.AuthEnabled {
		if n.Username == "" {
			return invalid("username can't be empty")
		}
		if n.Password == "" {
			return invalid("password can't be empty")
		}
	}

	if (n.TLS.CertFile == "") != (n.TLS.KeyFile == "") {
		return invalid("nats.tls.cert_file and nats.tls.key_file must be set together")
	}
	for name, path := range map[string]string{
		"cert_file": n.TLS.CertFile,
		"key_file":  n.TLS.KeyFile,
		"ca_file":   n.TLS.CAFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return errors.WrapKind(errors.ErrConfiguration, err, "Config", "Validate", "nats.tls."+name)
		}
	}

	return nil
}

func invalid(msg string) error {
	return errors.WrapKind(errors.ErrConfiguration, nil, "Config", "Validate", msg)
}

// String returns a JSON representation of the config with secrets redacted
func (c *Config) String() string {
	redacted := *c
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "****"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "****"
	}
	data, _ := json.MarshalIndent(&redacted, "", "  ")
	return string(data)
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "MAGICPORTAL",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := l.getDefaults()

	for _, path := range l.layers {
		rawConfig, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapKind(errors.ErrConfiguration, err, "Loader", "Load", "load "+path)
		}
		merged, err := l.mergeFromMap(cfg, rawConfig)
		if err != nil {
			return nil, errors.WrapKind(errors.ErrConfiguration, err, "Loader", "Load", "decode "+path)
		}
		cfg = merged
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
		MaxPacketSize: DefaultMaxPacketSize,
		FailurePolicy: FailurePolicyContinue,
	}
}

// loadRaw reads a configuration file as a generic map, picking the parser
// from the file extension.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	format, err := formatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	rawConfig, err := format.decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	if rawConfig == nil {
		rawConfig = map[string]any{}
	}

	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}

	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	nats, ok := data["nats"].(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"reconnect_wait", "timeout"} {
		if s, ok := nats[key].(string); ok {
			if d, err := time.ParseDuration(s); err == nil {
				nats[key] = d.Nanoseconds()
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	lookup := func(suffix string) (string, error) {
		key := l.envPrefix + suffix
		val := os.Getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return "", errors.WrapKind(errors.ErrConfiguration, err, "Loader", "applyEnvOverrides", "read "+key)
		}
		return val, nil
	}

	overrides := []struct {
		suffix string
		apply  func(string) error
	}{
		{"_MODE", func(v string) error { cfg.Mode = Mode(v); return nil }},
		{"_NATS_URLS", func(v string) error { cfg.NATS.URLs = splitList(v); return nil }},
		{"_NATS_USERNAME", func(v string) error { cfg.NATS.Username = v; return nil }},
		{"_NATS_PASSWORD", func(v string) error { cfg.NATS.Password = v; return nil }},
		{"_NATS_TOKEN", func(v string) error { cfg.NATS.Token = v; return nil }},
		{"_MAX_PACKET_SIZE", func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.WrapKind(errors.ErrConfiguration, err, "Loader", "applyEnvOverrides",
					"parse "+l.envPrefix+"_MAX_PACKET_SIZE")
			}
			cfg.MaxPacketSize = n
			return nil
		}},
	}

	for _, o := range overrides {
		val, err := lookup(o.suffix)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		if err := o.apply(val); err != nil {
			return err
		}
	}

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
