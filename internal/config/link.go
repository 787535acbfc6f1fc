package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/sensor.link/internal/sensor"
)

// DefaultConfigPath is the path to the canonical link defaults file.
const DefaultConfigPath = "config/link.defaults.json"

// Transport names accepted in the "transport" field.
const (
	TransportSerial   = "serial"
	TransportMQTT     = "mqtt"
	TransportLoopback = "loopback"
)

// LinkConfig is the root configuration for one node of a sensor link.
// Every field is optional; the Get* methods supply defaults so partial
// files are safe.
type LinkConfig struct {
	NodeID      *string `json:"node_id,omitempty"`
	PeerID      *string `json:"peer_id,omitempty"`
	MessagePath *string `json:"message_path,omitempty"`
	MinInterval *string `json:"min_interval,omitempty"` // duration string like "100ms"
	Transport   *string `json:"transport,omitempty"`

	Serial *SerialConfig `json:"serial,omitempty"`
	MQTT   *MQTTConfig   `json:"mqtt,omitempty"`

	// Receiver display
	WindowSize *int `json:"window_size,omitempty"`

	// Simulator
	Sensors        []string `json:"sensors,omitempty"`
	SampleInterval *string  `json:"sample_interval,omitempty"`
}

// SerialConfig describes the serial device used by the serial transport.
type SerialConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate,omitempty"`
	DataBits int    `json:"data_bits,omitempty"`
	StopBits int    `json:"stop_bits,omitempty"`
	Parity   string `json:"parity,omitempty"`
}

// MQTTConfig describes the broker used by the mqtt transport.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	QoS         *int   `json:"qos,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyLinkConfig returns a LinkConfig with all fields unset.
func EmptyLinkConfig() *LinkConfig {
	return &LinkConfig{}
}

// DefaultLinkConfig returns a config with every scalar field set to its
// default, matching config/link.defaults.json.
func DefaultLinkConfig() *LinkConfig {
	return &LinkConfig{
		NodeID:         ptrString("watch"),
		PeerID:         ptrString("phone"),
		MessagePath:    ptrString("/sensor"),
		MinInterval:    ptrString("100ms"),
		Transport:      ptrString(TransportLoopback),
		WindowSize:     ptrInt(120),
		SampleInterval: ptrString("20ms"),
	}
}

// LoadLinkConfig loads a LinkConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadLinkConfig(path string) (*LinkConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyLinkConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *LinkConfig) Validate() error {
	if c.NodeID != nil && strings.TrimSpace(*c.NodeID) == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.GetNodeID() == c.GetPeerID() {
		return fmt.Errorf("node_id and peer_id must differ, both are %q", c.GetNodeID())
	}
	if c.MessagePath != nil && !strings.HasPrefix(*c.MessagePath, "/") {
		return fmt.Errorf("message_path must start with '/', got %q", *c.MessagePath)
	}

	for name, v := range map[string]*string{"min_interval": c.MinInterval, "sample_interval": c.SampleInterval} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}

	switch c.GetTransport() {
	case TransportLoopback:
	case TransportSerial:
		if c.Serial == nil || c.Serial.Port == "" {
			return fmt.Errorf("serial transport requires serial.port")
		}
	case TransportMQTT:
		if c.MQTT == nil || c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt transport requires mqtt.broker")
		}
		if c.MQTT.QoS != nil && (*c.MQTT.QoS < 0 || *c.MQTT.QoS > 2) {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", *c.MQTT.QoS)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.GetTransport())
	}

	if c.WindowSize != nil && *c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", *c.WindowSize)
	}

	if _, err := c.GetSensors(); err != nil {
		return err
	}

	return nil
}

// GetNodeID returns the node_id value or the default.
func (c *LinkConfig) GetNodeID() string {
	if c.NodeID == nil || *c.NodeID == "" {
		return "watch"
	}
	return *c.NodeID
}

// GetPeerID returns the peer_id value or the default.
func (c *LinkConfig) GetPeerID() string {
	if c.PeerID == nil || *c.PeerID == "" {
		return "phone"
	}
	return *c.PeerID
}

// GetMessagePath returns the message_path value or the default.
func (c *LinkConfig) GetMessagePath() string {
	if c.MessagePath == nil || *c.MessagePath == "" {
		return "/sensor"
	}
	return *c.MessagePath
}

// GetMinInterval parses and returns MinInterval as a time.Duration.
func (c *LinkConfig) GetMinInterval() time.Duration {
	return parseDurationOr(c.MinInterval, 100*time.Millisecond)
}

// GetSampleInterval parses and returns SampleInterval as a time.Duration.
func (c *LinkConfig) GetSampleInterval() time.Duration {
	return parseDurationOr(c.SampleInterval, 20*time.Millisecond)
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetTransport returns the transport name or the default.
func (c *LinkConfig) GetTransport() string {
	if c.Transport == nil || *c.Transport == "" {
		return TransportLoopback
	}
	return strings.ToLower(*c.Transport)
}

// GetWindowSize returns the window_size value or the default.
func (c *LinkConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 120
	}
	return *c.WindowSize
}

// GetMQTTQoS returns the configured QoS or 1.
func (c *LinkConfig) GetMQTTQoS() byte {
	if c.MQTT == nil || c.MQTT.QoS == nil {
		return 1
	}
	return byte(*c.MQTT.QoS)
}

// GetSensors parses the sensor list. An empty list means every type.
func (c *LinkConfig) GetSensors() ([]sensor.Type, error) {
	if len(c.Sensors) == 0 {
		return sensor.Types(), nil
	}
	types := make([]sensor.Type, 0, len(c.Sensors))
	for _, name := range c.Sensors {
		t, err := sensor.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("invalid sensors entry: %w", err)
		}
		types = append(types, t)
	}
	return types, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics when the file cannot be loaded and is
// intended for test setup.
func MustLoadDefaultConfig() *LinkConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadLinkConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}
