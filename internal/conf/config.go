// config.go: configuration settings for the plant disease diagnosis service
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig holds file logging settings shared by all services.
type LogConfig struct {
	Enabled  bool   // true to enable file logging
	Path     string // path to the log file
	MaxSize  int    // max size in megabytes before rotation
	MaxAge   int    // max age in days to retain old log files
	Rotation int    // number of rotated files to keep
}

// InferenceConfig holds settings for the hosted image classification API.
type InferenceConfig struct {
	BaseURL       string        // base URL of the inference service
	APIKey        string        // API credential, supplied via config or environment
	PlantModel    string        // model path for the general plant endpoint
	RiceModel     string        // model path for the rice endpoint
	Timeout       time.Duration // per-request timeout
	MaxUploadSize int64         // maximum accepted image payload in bytes
}

// Settings contains all runtime configuration for the service.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version string `yaml:"-"` // version from build

	Main struct {
		Name string    // service instance name
		Log  LogConfig // logging configuration
	}

	WebServer struct {
		Debug bool   // true to enable web server debug mode
		Port  string // port for web server
	}

	Inference InferenceConfig // inference API configuration

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}

		File struct {
			Enabled bool   // true to enable JSON lines file output
			Path    string // path to diagnosis log file
		}
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the current settings instance, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults are defined in defaults.go
	setDefaultConfig()

	// The inference credential must never live in source; allow it to be
	// supplied through the environment in addition to the config file.
	viper.SetEnvPrefix("plantdiag")
	if err := viper.BindEnv("inference.apikey", "PLANTDIAG_INFERENCE_APIKEY"); err != nil {
		return fmt.Errorf("error binding inference.apikey: %w", err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, run with defaults and environment
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the paths where a config file is searched for,
// working directory first.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "plantdiag"),
	}, nil
}
