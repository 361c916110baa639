// Package config handles configuration loading, defaults, and validation
// for the connectivity supervisor.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default config file locations, checked in order when no path is given.
var configPaths = []string{
	"./connsupervisor.yaml",
	"./connsupervisor.yml",
	"~/.config/connsupervisor/config.yaml",
	"/etc/connsupervisor/config.yaml",
}

// Config is the root configuration tree. Field names mirror the
// "Configuration options" table in the specification.
type Config struct {
	// BTStateChangeDelayMs debounces proxy-disconnect fan-out. 0 disables debouncing.
	BTStateChangeDelayMs int64 `yaml:"bt_state_change_delay_ms" json:"bt_state_change_delay_ms" validate:"min=0,max=60000"`

	// OffBodyRadiosOffEnabled gates off-body fan-out entirely.
	OffBodyRadiosOffEnabled bool `yaml:"off_body_radios_off_enabled" json:"off_body_radios_off_enabled"`

	// OffBodyDelayMs debounces the off-body=true transition.
	OffBodyDelayMs int64 `yaml:"off_body_delay_ms" json:"off_body_delay_ms" validate:"min=0"`

	// CellAuto allows the cellular mediator to turn itself off while the proxy is connected.
	CellAuto bool `yaml:"cell_auto" json:"cell_auto"`

	// CellOn is the master cellular enable switch.
	CellOn bool `yaml:"cell_on" json:"cell_on"`

	// SignalDetectorEnabled enables signal-state-driven cellular off rules.
	SignalDetectorEnabled bool `yaml:"signal_detector_enabled" json:"signal_detector_enabled"`

	// TimeOnlyMode holds the ultra-low-power mode k/v list.
	TimeOnlyMode TimeOnlyModeConfig `yaml:"time_only_mode" json:"time_only_mode"`

	// ProxyScoreClassic is the network score advertised while on a classic BT link.
	ProxyScoreClassic int `yaml:"proxy_score_classic" json:"proxy_score_classic" validate:"min=0"`

	// ProxyScoreOnCharger is the network score advertised while charging.
	ProxyScoreOnCharger int `yaml:"proxy_score_on_charger" json:"proxy_score_on_charger" validate:"min=0"`

	// CancelConnectOnBootDelay is how long the boot-time proxy connect intent waits before giving up.
	CancelConnectOnBootDelay time.Duration `yaml:"cancel_connect_on_boot_delay" json:"cancel_connect_on_boot_delay"`

	// Logging configures the slog-based logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures the Prometheus exporter.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Diagnostics configures the HTTP/WebSocket dump surface.
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics"`

	// GRPCHealth configures the gRPC health/reflection surface.
	GRPCHealth GRPCHealthConfig `yaml:"grpc_health" json:"grpc_health"`

	// Telemetry configures the optional MQTT telemetry sink.
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`

	// Policy configures the activity-mode/time-only-mode policy engine.
	Policy PolicyConfig `yaml:"policy" json:"policy"`

	// Bluetooth configures adapter identity and companion lookup.
	Bluetooth BluetoothConfig `yaml:"bluetooth" json:"bluetooth"`
}

// TimeOnlyModeConfig mirrors the platform's time-only-mode key/value list.
type TimeOnlyModeConfig struct {
	Enabled            bool `yaml:"enabled" json:"enabled"`
	DisableTiltToWake  bool `yaml:"disable_tilt_to_wake" json:"disable_tilt_to_wake"`
	DisableTouchToWake bool `yaml:"disable_touch_to_wake" json:"disable_touch_to_wake"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
	File   string `yaml:"file" json:"file"`
}

// MetricsConfig holds Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Addr     string `yaml:"addr" json:"addr"`
}

// DiagnosticsConfig holds the HTTP/WebSocket dump surface configuration.
type DiagnosticsConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Addr      string        `yaml:"addr" json:"addr" validate:"required_if=Enabled true"`
	Auth      AuthConfig    `yaml:"auth" json:"auth"`
	StreamTTL time.Duration `yaml:"stream_ttl" json:"stream_ttl"`
}

// AuthConfig holds JWT/API-key settings for the diagnostics surface.
type AuthConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	JWTSecret string   `yaml:"jwt_secret" json:"jwt_secret"`
	APIKeys   []string `yaml:"api_keys" json:"api_keys"`
}

// GRPCHealthConfig holds gRPC health/reflection server configuration.
type GRPCHealthConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	Port             int  `yaml:"port" json:"port" validate:"min=0,max=65535"`
	EnableReflection bool `yaml:"enable_reflection" json:"enable_reflection"`
}

// TelemetryConfig holds the optional MQTT telemetry sink configuration.
type TelemetryConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Broker    string `yaml:"broker" json:"broker" validate:"required_if=Enabled true"`
	ClientID  string `yaml:"client_id" json:"client_id"`
	TopicRoot string `yaml:"topic_root" json:"topic_root"`
	QOS       byte   `yaml:"qos" json:"qos" validate:"max=2"`
}

// PolicyConfig holds activity-mode/time-only-mode policy engine configuration.
type PolicyConfig struct {
	// ScriptPath, if set, is a Lua script evaluated for policy decisions.
	// Empty means the built-in static policy is used.
	ScriptPath string `yaml:"script_path" json:"script_path"`
}

// BluetoothConfig holds adapter/companion lookup configuration.
type BluetoothConfig struct {
	AdapterID          string `yaml:"adapter_id" json:"adapter_id"`
	ServiceUUID        string `yaml:"service_uuid" json:"service_uuid" validate:"required"`
	CharacteristicUUID string `yaml:"characteristic_uuid" json:"characteristic_uuid" validate:"required"`

	// CompanionAddress is the BT device address of the paired phone.
	// Pairing itself happens out of process; this is the address the
	// companion tracker treats as authoritative at startup. Empty
	// means no companion is paired yet.
	CompanionAddress string `yaml:"companion_address" json:"companion_address"`
	CompanionName    string `yaml:"companion_name" json:"companion_name"`
}

// Load loads configuration from path, or from the default search paths
// when path is empty, falling back to Default().
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}

	for _, p := range configPaths {
		if len(p) > 0 && p[0] == '~' {
			home, err := os.UserHomeDir()
			if err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		if _, err := os.Stat(p); err == nil {
			return loadFile(p)
		}
	}

	return Default(), nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration against its struct tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Save writes the configuration to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the configuration with every spec-mandated default applied.
func Default() *Config {
	return &Config{
		BTStateChangeDelayMs:     5000,
		OffBodyRadiosOffEnabled:  true,
		OffBodyDelayMs:           10 * 60 * 1000,
		CellAuto:                 true,
		CellOn:                   true,
		SignalDetectorEnabled:    true,
		CancelConnectOnBootDelay: 5 * time.Minute,
		ProxyScoreClassic:        70,
		ProxyScoreOnCharger:      95,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
			Addr:     ":9400",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:   false,
			Addr:      ":9401",
			StreamTTL: 0,
		},
		GRPCHealth: GRPCHealthConfig{
			Enabled:          false,
			Port:             9402,
			EnableReflection: true,
		},
		Telemetry: TelemetryConfig{
			Enabled:   false,
			ClientID:  "connsupervisor",
			TopicRoot: "connsupervisor",
			QOS:       0,
		},
		Bluetooth: BluetoothConfig{
			ServiceUUID:        "0000fdab-0000-1000-8000-00805f9b34fb",
			CharacteristicUUID: "0000fdac-0000-1000-8000-00805f9b34fb",
		},
	}
}
