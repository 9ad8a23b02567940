// Package config loads Settings (A2) from an optional file plus
// environment variables, following the teacher's env-var-driven
// convention (pkg/config's NORNICDB_-prefixed keys) but generalized to
// viper so a config file can override or supply the same values.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/orneryd/yggdrasil/internal/physics"
)

// EnvPrefix is the prefix applied to every environment variable, the same
// role NORNICDB_ played for the teacher's executor mode switch.
const EnvPrefix = "YGGDRASIL"

// ServerSettings configures the HTTP/websocket listener.
type ServerSettings struct {
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
}

// WebSocketSettings mirrors spec.md §6's wire-level tunables.
type WebSocketSettings struct {
	CompressionEnabled  bool `mapstructure:"compression_enabled"`
	CompressionThreshold int  `mapstructure:"compression_threshold"`
	MaxMessageSize      int  `mapstructure:"max_message_size"`
	UpdateRate          int  `mapstructure:"update_rate"`
	HeartbeatIntervalMS int  `mapstructure:"heartbeat_interval_ms"`
	HeartbeatTimeoutMS  int  `mapstructure:"heartbeat_timeout_ms"`
	MaxConnections      int  `mapstructure:"max_connections"`
	ReconnectAttempts   int  `mapstructure:"reconnect_attempts"`
	ReconnectDelayMS    int  `mapstructure:"reconnect_delay_ms"`
	BinaryChunkSize     int  `mapstructure:"binary_chunk_size"`
}

// UpstreamSettings configures the optional chat/speech collaborators.
type UpstreamSettings struct {
	ChatURL       string `mapstructure:"chat_url"`
	ChatAPIKey    string `mapstructure:"chat_api_key"`
	SpeechURL     string `mapstructure:"speech_url"`
	SpeechAPIKey  string `mapstructure:"speech_api_key"`
}

// Settings is the complete, loaded configuration surface.
type Settings struct {
	Server       ServerSettings       `mapstructure:"server"`
	WebSocket    WebSocketSettings    `mapstructure:"websocket"`
	Physics      physics.Params       `mapstructure:"physics"`
	Upstream     UpstreamSettings     `mapstructure:"upstream"`
	MetadataPath string               `mapstructure:"metadata_path"`
}

func defaults() Settings {
	return Settings{
		Server: ServerSettings{
			BindAddress: "0.0.0.0",
			Port:        8080,
			TLSEnabled:  false,
		},
		WebSocket: WebSocketSettings{
			CompressionEnabled:   true,
			CompressionThreshold: 1024,
			MaxMessageSize:       100 << 20,
			UpdateRate:           5,
			HeartbeatIntervalMS:  15000,
			HeartbeatTimeoutMS:   60000,
			MaxConnections:       1000,
			ReconnectAttempts:    3,
			ReconnectDelayMS:     5000,
			BinaryChunkSize:      65536,
		},
		Physics:      physics.DefaultParams(),
		MetadataPath: "/data/metadata.json",
	}
}

// Load reads Settings from an optional config file at path (if non-empty)
// and environment variables prefixed YGGDRASIL_, with "_"-separated
// nesting (e.g. YGGDRASIL_WEBSOCKET_UPDATE_RATE), the same separator
// convention spec.md §6 describes and the teacher's NORNICDB_EXECUTOR_MODE
// demonstrates for a single flag.
func Load(path string) (Settings, error) {
	v := viper.New()
	applyDefaults(v, defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return settings, nil
}

// applyDefaults seeds viper with every default key so AutomaticEnv/file
// overrides have something to merge against.
func applyDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.tls_enabled", d.Server.TLSEnabled)

	v.SetDefault("websocket.compression_enabled", d.WebSocket.CompressionEnabled)
	v.SetDefault("websocket.compression_threshold", d.WebSocket.CompressionThreshold)
	v.SetDefault("websocket.max_message_size", d.WebSocket.MaxMessageSize)
	v.SetDefault("websocket.update_rate", d.WebSocket.UpdateRate)
	v.SetDefault("websocket.heartbeat_interval_ms", d.WebSocket.HeartbeatIntervalMS)
	v.SetDefault("websocket.heartbeat_timeout_ms", d.WebSocket.HeartbeatTimeoutMS)
	v.SetDefault("websocket.max_connections", d.WebSocket.MaxConnections)
	v.SetDefault("websocket.reconnect_attempts", d.WebSocket.ReconnectAttempts)
	v.SetDefault("websocket.reconnect_delay_ms", d.WebSocket.ReconnectDelayMS)
	v.SetDefault("websocket.binary_chunk_size", d.WebSocket.BinaryChunkSize)

	v.SetDefault("physics.iterations", d.Physics.Iterations)
	v.SetDefault("physics.spring_strength", d.Physics.SpringStrength)
	v.SetDefault("physics.repulsion", d.Physics.Repulsion)
	v.SetDefault("physics.damping", d.Physics.Damping)
	v.SetDefault("physics.max_repulsion_distance", d.Physics.MaxRepulsionDistance)
	v.SetDefault("physics.viewport_bounds", d.Physics.ViewportBounds)
	v.SetDefault("physics.mass_scale", d.Physics.MassScale)
	v.SetDefault("physics.boundary_damping", d.Physics.BoundaryDamping)
	v.SetDefault("physics.enable_bounds", d.Physics.EnableBounds)
	v.SetDefault("physics.time_step", d.Physics.TimeStep)
	v.SetDefault("physics.phase", string(d.Physics.Phase))
	v.SetDefault("physics.mode", string(d.Physics.Mode))

	v.SetDefault("upstream.chat_url", d.Upstream.ChatURL)
	v.SetDefault("upstream.chat_api_key", d.Upstream.ChatAPIKey)
	v.SetDefault("upstream.speech_url", d.Upstream.SpeechURL)
	v.SetDefault("upstream.speech_api_key", d.Upstream.SpeechAPIKey)

	v.SetDefault("metadata_path", d.MetadataPath)
}
