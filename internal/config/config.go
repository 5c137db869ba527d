// Package config provides configuration management for gamelink: loading
// with precedence (flags > environment > project file > user file >
// defaults), struct validation, and the hex address map wiring native
// capabilities and state reads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dorcha-inc/gamelink/internal/core"
	"github.com/dorcha-inc/gamelink/internal/native"
)

const (
	DefaultSocketName      = "gamelink.sock"
	DefaultPollAttempts    = 10
	DefaultPollIntervalMS  = 10
	DefaultFrameIntervalMS = 16
	DefaultUnitTokenMaxLen = 32
)

type GamelinkLogLevel string

const (
	GamelinkLogLevelDebug GamelinkLogLevel = "debug"
	GamelinkLogLevelInfo  GamelinkLogLevel = "info"
	GamelinkLogLevelWarn  GamelinkLogLevel = "warn"
	GamelinkLogLevelError GamelinkLogLevel = "error"
)

func ValidLogLevels() map[GamelinkLogLevel]struct{} {
	return map[GamelinkLogLevel]struct{}{
		GamelinkLogLevelDebug: {},
		GamelinkLogLevelInfo:  {},
		GamelinkLogLevelWarn:  {},
		GamelinkLogLevelError: {},
	}
}

func IsValidLogLevel(level GamelinkLogLevel) bool {
	_, ok := ValidLogLevels()[level]
	return ok
}

type GamelinkLogFormat string

const (
	GamelinkLogFormatPretty GamelinkLogFormat = "pretty"
	GamelinkLogFormatJSON   GamelinkLogFormat = "json"
)

func ValidLogFormats() map[GamelinkLogFormat]struct{} {
	return map[GamelinkLogFormat]struct{}{
		GamelinkLogFormatPretty: {},
		GamelinkLogFormatJSON:   {},
	}
}

func IsValidLogFormat(format GamelinkLogFormat) bool {
	_, ok := ValidLogFormats()[format]
	return ok
}

// AddressMap holds the resolved host addresses as hex strings, the way an
// offset dump supplies them. Empty entries mean the address has not been
// resolved for this host build; the affected commands answer with their
// unavailable sentinels.
type AddressMap struct {
	PlayerGUID  string `yaml:"player_guid,omitempty" mapstructure:"player_guid"`
	TargetGUID  string `yaml:"target_guid,omitempty" mapstructure:"target_guid"`
	ComboPoints string `yaml:"combo_points,omitempty" mapstructure:"combo_points"`
}

// GamelinkConfig represents the agent configuration: the control socket,
// the response poll window, the frame source interval, and the host
// address map.
type GamelinkConfig struct {
	SocketPath      string            `yaml:"socket_path,omitempty" mapstructure:"socket_path" validate:"required"`
	PollAttempts    int               `yaml:"poll_attempts,omitempty" mapstructure:"poll_attempts" validate:"min=1"`
	PollIntervalMS  int               `yaml:"poll_interval_ms,omitempty" mapstructure:"poll_interval_ms" validate:"min=1"`
	FrameIntervalMS int               `yaml:"frame_interval_ms,omitempty" mapstructure:"frame_interval_ms" validate:"min=1"`
	UnitTokenMaxLen int               `yaml:"unit_token_max_len,omitempty" mapstructure:"unit_token_max_len" validate:"min=1"`
	LogFormat       GamelinkLogFormat `yaml:"log_format,omitempty" mapstructure:"log_format"`
	LogLevel        string            `yaml:"log_level,omitempty" mapstructure:"log_level"`
	Simulate        bool              `yaml:"simulate,omitempty" mapstructure:"simulate"`
	Addresses       AddressMap        `yaml:"addresses,omitempty" mapstructure:"addresses"`
}

var validate = validator.New()

// PollInterval returns the poll interval as a duration.
func (cfg *GamelinkConfig) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalMS) * time.Millisecond
}

// FrameInterval returns the frame source interval as a duration.
func (cfg *GamelinkConfig) FrameInterval() time.Duration {
	return time.Duration(cfg.FrameIntervalMS) * time.Millisecond
}

// StateAddresses parses the address map into resolved addresses. Empty
// entries resolve to zero.
func (cfg *GamelinkConfig) StateAddresses() (native.StateAddresses, error) {
	player, err := ParseAddress(cfg.Addresses.PlayerGUID)
	if err != nil {
		return native.StateAddresses{}, fmt.Errorf("addresses.player_guid: %w", err)
	}
	target, err := ParseAddress(cfg.Addresses.TargetGUID)
	if err != nil {
		return native.StateAddresses{}, fmt.Errorf("addresses.target_guid: %w", err)
	}
	combo, err := ParseAddress(cfg.Addresses.ComboPoints)
	if err != nil {
		return native.StateAddresses{}, fmt.Errorf("addresses.combo_points: %w", err)
	}
	return native.StateAddresses{
		PlayerGUID:  player,
		TargetGUID:  target,
		ComboPoints: combo,
	}, nil
}

// ParseAddress parses one hex address, with or without the 0x prefix. The
// empty string parses to zero.
func ParseAddress(s string) (uintptr, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q", s)
	}
	return uintptr(v), nil
}

// DefaultSocketPath returns the per-user default socket location.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), DefaultSocketName)
}

// GetUserConfigPath returns the path to the user-specific config file
// (~/.gamelink/config.yaml).
func GetUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".gamelink", "config.yaml"), nil
}

// GetProjectConfigPath returns the path to the project-specific config file
// (./gamelink.yaml) relative to the current working directory.
func GetProjectConfigPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return filepath.Join(cwd, "gamelink.yaml"), nil
}

// setupViper configures Viper with defaults, config file locations, and
// environment variables. If configPath is non-empty, only that file is read.
func setupViper(configPath string) error {
	viper.Reset()
	setViperDefaults()
	viper.SetEnvPrefix("GAMELINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	// Precedence: user config first, then project config merged on top
	userPath, userErr := GetUserConfigPath()
	if userErr == nil {
		if _, statErr := os.Stat(userPath); statErr == nil {
			viper.SetConfigFile(userPath)
			if readErr := viper.ReadInConfig(); readErr != nil {
				zap.L().Debug("Failed to read user config file", zap.String("path", userPath), zap.Error(readErr))
			}
		}
	}

	projectPath, projectErr := GetProjectConfigPath()
	if projectErr == nil {
		if _, statErr := os.Stat(projectPath); statErr == nil {
			viper.SetConfigFile(projectPath)
			if mergeErr := viper.MergeInConfig(); mergeErr != nil {
				zap.L().Debug("Failed to merge project config file", zap.String("path", projectPath), zap.Error(mergeErr))
			}
		}
	}

	return nil
}

func setViperDefaults() {
	viper.SetDefault("socket_path", DefaultSocketPath())
	viper.SetDefault("poll_attempts", DefaultPollAttempts)
	viper.SetDefault("poll_interval_ms", DefaultPollIntervalMS)
	viper.SetDefault("frame_interval_ms", DefaultFrameIntervalMS)
	viper.SetDefault("unit_token_max_len", DefaultUnitTokenMaxLen)
	viper.SetDefault("log_format", "json")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("simulate", false)
}

// LoadConfig loads configuration with precedence: environment > project
// config > user config > defaults. If configPath is provided, it is loaded
// instead of the default locations.
func LoadConfig(configPath string) (*GamelinkConfig, error) {
	if err := setupViper(configPath); err != nil {
		return nil, err
	}

	cfg := &GamelinkConfig{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig validates the configuration, both the struct tags and the
// enum and address fields the tags cannot express.
func validateConfig(cfg *GamelinkConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.LogFormat != "" && !IsValidLogFormat(cfg.LogFormat) {
		return fmt.Errorf("log_format must be one of: %s, got '%s'",
			core.JoinMapKeys(ValidLogFormats()), cfg.LogFormat)
	}
	if cfg.LogLevel != "" && !IsValidLogLevel(GamelinkLogLevel(cfg.LogLevel)) {
		return fmt.Errorf("log_level must be one of: %s, got '%s'",
			core.JoinMapKeys(ValidLogLevels()), cfg.LogLevel)
	}

	if _, err := cfg.StateAddresses(); err != nil {
		return err
	}
	return nil
}

// WriteDefaultConfig writes a fully populated default config file to the
// given path, creating parent directories as needed. Fails if the file
// already exists.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg := &GamelinkConfig{
		SocketPath:      DefaultSocketPath(),
		PollAttempts:    DefaultPollAttempts,
		PollIntervalMS:  DefaultPollIntervalMS,
		FrameIntervalMS: DefaultFrameIntervalMS,
		UnitTokenMaxLen: DefaultUnitTokenMaxLen,
		LogFormat:       GamelinkLogFormatJSON,
		LogLevel:        string(GamelinkLogLevelInfo),
		Simulate:        true,
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// #nosec G301 -- config directory permissions 0755 are acceptable
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// #nosec G306 -- config file permissions 0644 are acceptable
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
