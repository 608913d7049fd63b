// Package config provides YAML-based configuration loading for aetherlink nodes.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
)

// Config is the root application configuration, shared by all three node
// roles. Role-specific interval knobs live in their own sections.
type Config struct {
    // AppName optional logical name of the node/application
    AppName string `mapstructure:"app_name"`

    // DataDir base directory for persistent data (server snapshots)
    DataDir string `mapstructure:"data_dir"`

    // NodeID is the local node identifier, 12 hex digits with optional colons
    NodeID string `mapstructure:"node_id"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Radio selects and tunes the bearer
    Radio RadioConfig `mapstructure:"radio"`

    // Forward holds forward-node loop intervals
    Forward ForwardConfig `mapstructure:"forward"`

    // Client holds client retry/cadence knobs
    Client ClientConfig `mapstructure:"client"`

    // Server holds server loop knobs
    Server ServerConfig `mapstructure:"server"`

    // Metrics controls the optional Prometheus listener
    Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// RadioConfig selects the bearer and its RF parameters.
type RadioConfig struct {
    // Bearer: sim or udp
    Bearer string `mapstructure:"bearer"`
    // Channel: 802.15.4 channel number, 11-26
    Channel uint8 `mapstructure:"channel"`
    // TxPower in dBm, at most 30
    TxPower uint8 `mapstructure:"tx_power"`
    // Listen/Peer apply to the udp bearer only
    Listen string `mapstructure:"listen"`
    Peer   string `mapstructure:"peer"`
}

// ForwardConfig holds the forward-node timer intervals, in milliseconds.
type ForwardConfig struct {
    BeaconIntervalMS   uint64 `mapstructure:"beacon_interval_ms"`
    ElectionIntervalMS uint64 `mapstructure:"election_interval_ms"`
    CleanupIntervalMS  uint64 `mapstructure:"cleanup_interval_ms"`
    PollSleepMS        uint32 `mapstructure:"poll_sleep_ms"`
}

// ClientConfig holds the client retry bounds and data cadence.
type ClientConfig struct {
    DiscoveryAttempts   int    `mapstructure:"discovery_attempts"`
    DiscoveryIntervalMS uint32 `mapstructure:"discovery_interval_ms"`
    RequestAttempts     int    `mapstructure:"request_attempts"`
    RequestIntervalMS   uint32 `mapstructure:"request_interval_ms"`
    PathWaitMS          uint64 `mapstructure:"path_wait_ms"`
    DataIntervalMS      uint64 `mapstructure:"data_interval_ms"`
    PollSleepMS         uint32 `mapstructure:"poll_sleep_ms"`
}

// ServerConfig holds the server loop knobs.
type ServerConfig struct {
    BeaconIntervalMS uint64 `mapstructure:"beacon_interval_ms"`
    PollSleepMS      uint32 `mapstructure:"poll_sleep_ms"`
    SnapshotFile     string `mapstructure:"snapshot_file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
    Enable bool   `mapstructure:"enable"`
    Listen string `mapstructure:"listen"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "aether-node",
        DataDir: "./data",
        NodeID:  "f1f2f3f4f5f6",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/aetherlink.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Radio: RadioConfig{
            Bearer:  "udp",
            Channel: 15,
            TxPower: 20,
            Listen:  ":7717",
            Peer:    "255.255.255.255:7717",
        },
        Forward: ForwardConfig{
            BeaconIntervalMS:   60_000,
            ElectionIntervalMS: 300_000,
            CleanupIntervalMS:  30_000,
            PollSleepMS:        1000,
        },
        Client: ClientConfig{
            DiscoveryAttempts:   30,
            DiscoveryIntervalMS: 1000,
            RequestAttempts:     10,
            RequestIntervalMS:   1000,
            PathWaitMS:          30_000,
            DataIntervalMS:      500,
            PollSleepMS:         100,
        },
        Server: ServerConfig{
            BeaconIntervalMS: 30_000,
            PollSleepMS:      500,
            SnapshotFile:     "data/records.cbor",
        },
        Metrics: MetricsConfig{Enable: false, Listen: ":9717"},
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix AETHER and `.`/`-` are replaced with `_`.
// Example: AETHER_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("AETHER")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("data_dir", cfg.DataDir)
    v.SetDefault("node_id", cfg.NodeID)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("radio.bearer", cfg.Radio.Bearer)
    v.SetDefault("radio.channel", cfg.Radio.Channel)
    v.SetDefault("radio.tx_power", cfg.Radio.TxPower)
    v.SetDefault("radio.listen", cfg.Radio.Listen)
    v.SetDefault("radio.peer", cfg.Radio.Peer)
    v.SetDefault("forward.beacon_interval_ms", cfg.Forward.BeaconIntervalMS)
    v.SetDefault("forward.election_interval_ms", cfg.Forward.ElectionIntervalMS)
    v.SetDefault("forward.cleanup_interval_ms", cfg.Forward.CleanupIntervalMS)
    v.SetDefault("forward.poll_sleep_ms", cfg.Forward.PollSleepMS)
    v.SetDefault("client.discovery_attempts", cfg.Client.DiscoveryAttempts)
    v.SetDefault("client.discovery_interval_ms", cfg.Client.DiscoveryIntervalMS)
    v.SetDefault("client.request_attempts", cfg.Client.RequestAttempts)
    v.SetDefault("client.request_interval_ms", cfg.Client.RequestIntervalMS)
    v.SetDefault("client.path_wait_ms", cfg.Client.PathWaitMS)
    v.SetDefault("client.data_interval_ms", cfg.Client.DataIntervalMS)
    v.SetDefault("client.poll_sleep_ms", cfg.Client.PollSleepMS)
    v.SetDefault("server.beacon_interval_ms", cfg.Server.BeaconIntervalMS)
    v.SetDefault("server.poll_sleep_ms", cfg.Server.PollSleepMS)
    v.SetDefault("server.snapshot_file", cfg.Server.SnapshotFile)
    v.SetDefault("metrics.enable", cfg.Metrics.Enable)
    v.SetDefault("metrics.listen", cfg.Metrics.Listen)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("AETHER_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `aetherlink`
        v.SetConfigName("aetherlink")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".aetherlink"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }

    if _, err := protocol.ParseNodeID(c.NodeID); err != nil {
        return fmt.Errorf("invalid node_id: %w", err)
    }

    switch strings.ToLower(strings.TrimSpace(c.Radio.Bearer)) {
    case "sim", "udp":
        // ok
    default:
        return fmt.Errorf("invalid radio.bearer: %q", c.Radio.Bearer)
    }
    if c.Radio.Channel < 11 || c.Radio.Channel > 26 {
        return fmt.Errorf("invalid radio.channel: %d", c.Radio.Channel)
    }
    if c.Radio.TxPower > 30 {
        return fmt.Errorf("invalid radio.tx_power: %d", c.Radio.TxPower)
    }
    return nil
}

// LocalNodeID parses the configured node identifier.
func (c *Config) LocalNodeID() (protocol.NodeID, error) {
    return protocol.ParseNodeID(c.NodeID)
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
