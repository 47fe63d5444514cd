// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Security    SecurityConfig    `mapstructure:"security"`
	Printer     PrinterConfig     `mapstructure:"printer"`
	Bluetooth   BluetoothConfig   `mapstructure:"bluetooth"`
	Network     NetworkConfig     `mapstructure:"network"`
	Bridge      BridgeConfig      `mapstructure:"bridge"`
	Logo        LogoConfig        `mapstructure:"logo"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	Database    DatabaseConfig    `mapstructure:"database"`
	App         AppConfig         `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PrinterConfig represents print dispatch settings
type PrinterConfig struct {
	ChunkSize       int           `mapstructure:"chunk_size"`
	NetworkSettle   time.Duration `mapstructure:"network_settle"`
	DiscoverySettle time.Duration `mapstructure:"discovery_settle"`
	ResetSettle     time.Duration `mapstructure:"reset_settle"`
	QueueDepth      int           `mapstructure:"queue_depth"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
}

// BluetoothConfig represents Bluetooth transport settings
type BluetoothConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	Channel               int           `mapstructure:"channel"`
	TTYBaudRate           int           `mapstructure:"tty_baud_rate"`
	ScanTimeout           time.Duration `mapstructure:"scan_timeout"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	ConnectSettle         time.Duration `mapstructure:"connect_settle"`
	ReconnectSettleBefore time.Duration `mapstructure:"reconnect_settle_before"`
	ReconnectSettleAfter  time.Duration `mapstructure:"reconnect_settle_after"`
	BootRetries           int           `mapstructure:"boot_retries"`
	RetryInterval         time.Duration `mapstructure:"retry_interval"`
}

// NetworkConfig represents raw TCP printer settings
type NetworkConfig struct {
	Port           int           `mapstructure:"port"`
	DefaultHost    string        `mapstructure:"default_host"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ScanSubnet     string        `mapstructure:"scan_subnet"`
	ScanTimeout    time.Duration `mapstructure:"scan_timeout"`
	ScanWorkers    int           `mapstructure:"scan_workers"`
}

// BridgeConfig represents the web page bridge settings
type BridgeConfig struct {
	CommandPrefix string        `mapstructure:"command_prefix"`
	EPrintBase    string        `mapstructure:"eprint_base"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

// LogoConfig represents the fallback logo sources
type LogoConfig struct {
	AssetURI        string        `mapstructure:"asset_uri"`
	AssetDir        string        `mapstructure:"asset_dir"`
	AssetName       string        `mapstructure:"asset_name"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// PreferencesConfig represents the preference file locations
type PreferencesConfig struct {
	Path       string `mapstructure:"path"`
	MirrorPath string `mapstructure:"mirror_path"`
}

// DatabaseConfig represents the optional job journal database
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables.
// A missing config file is not an error; defaults and environment apply.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/pos-print-bridge")

	// Environment variable support
	viper.SetEnvPrefix("POS_BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8085")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 20)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Security defaults
	viper.SetDefault("security.allowed_origins", []string{"*"})

	// Printer defaults
	viper.SetDefault("printer.chunk_size", 256)
	viper.SetDefault("printer.network_settle", "80ms")
	viper.SetDefault("printer.discovery_settle", "150ms")
	viper.SetDefault("printer.reset_settle", "50ms")
	viper.SetDefault("printer.queue_depth", 1)
	viper.SetDefault("printer.job_timeout", "60s")

	// Bluetooth defaults
	viper.SetDefault("bluetooth.enabled", true)
	viper.SetDefault("bluetooth.channel", 1)
	viper.SetDefault("bluetooth.tty_baud_rate", 115200)
	viper.SetDefault("bluetooth.scan_timeout", "12s")
	viper.SetDefault("bluetooth.connect_timeout", "15s")
	viper.SetDefault("bluetooth.connect_settle", "300ms")
	viper.SetDefault("bluetooth.reconnect_settle_before", "150ms")
	viper.SetDefault("bluetooth.reconnect_settle_after", "200ms")
	viper.SetDefault("bluetooth.boot_retries", 5)
	viper.SetDefault("bluetooth.retry_interval", "500ms")

	// Network defaults
	viper.SetDefault("network.port", 9100)
	viper.SetDefault("network.default_host", "192.168.0.100")
	viper.SetDefault("network.connect_timeout", "5s")
	viper.SetDefault("network.read_timeout", "1s")
	viper.SetDefault("network.write_timeout", "30s")
	viper.SetDefault("network.scan_subnet", "")
	viper.SetDefault("network.scan_timeout", "300ms")
	viper.SetDefault("network.scan_workers", 64)

	// Bridge defaults
	viper.SetDefault("bridge.command_prefix", "esmartpos:")
	viper.SetDefault("bridge.eprint_base", "https://esmartpos.com/eprint/posprint.php/eprint?")
	viper.SetDefault("bridge.fetch_timeout", "15s")

	// Logo defaults
	viper.SetDefault("logo.asset_uri", "")
	viper.SetDefault("logo.asset_dir", "./assets")
	viper.SetDefault("logo.asset_name", "logo.png")
	viper.SetDefault("logo.download_timeout", "10s")

	// Preferences defaults
	viper.SetDefault("preferences.path", "./data/printer_prefs.json")
	viper.SetDefault("preferences.mirror_path", "./public/printer_prefs.json")

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "pos_print_bridge")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 2)
	viper.SetDefault("database.max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// App defaults
	viper.SetDefault("app.name", "pos-print-bridge")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if config.Network.Port < 1 || config.Network.Port > 65535 {
		return fmt.Errorf("network.port must be between 1 and 65535")
	}
	if config.Printer.ChunkSize <= 0 {
		return fmt.Errorf("printer.chunk_size must be positive")
	}
	if config.Printer.QueueDepth < 0 {
		return fmt.Errorf("printer.queue_depth must not be negative")
	}
	if config.Bluetooth.BootRetries < 1 {
		return fmt.Errorf("bluetooth.boot_retries must be at least 1")
	}

	delays := map[string]time.Duration{
		"printer.network_settle":            config.Printer.NetworkSettle,
		"printer.discovery_settle":          config.Printer.DiscoverySettle,
		"printer.reset_settle":              config.Printer.ResetSettle,
		"bluetooth.connect_settle":          config.Bluetooth.ConnectSettle,
		"bluetooth.reconnect_settle_before": config.Bluetooth.ReconnectSettleBefore,
		"bluetooth.reconnect_settle_after":  config.Bluetooth.ReconnectSettleAfter,
		"bluetooth.retry_interval":          config.Bluetooth.RetryInterval,
	}
	for key, d := range delays {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the database is enabled")
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
