package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Text modes for the compositor
	TextModeRaster = "raster"
	TextModeNative = "native"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultTextMode    = TextModeRaster
	DefaultZoom        = 1.5
	DefaultRasterizer  = "pdftoppm"
	DefaultDBName      = "forms.db"

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix is prepended to environment variable names.
	EnvPrefix = "PDF_FORMS"
)

// Config holds all configuration for the forms server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Storage configuration
	StorageDir   string // uploads and filled documents live under here
	DatabasePath string // empty means <StorageDir>/forms.db

	// Rendering configuration
	TextMode   string
	Zoom       float64
	Rasterizer string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum base document size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:        ModeStdio, // stdio is what MCP clients launch by default
		Host:        DefaultHost,
		Port:        DefaultPort,
		StorageDir:  currentDir,
		TextMode:    DefaultTextMode,
		Zoom:        DefaultZoom,
		Rasterizer:  DefaultRasterizer,
		Version:     "1.0.0",
		ServerName:  "mcp-pdf-forms",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.StorageDir != "" {
		if expandedPath, err := filepath.Abs(cfg.StorageDir); err == nil {
			cfg.StorageDir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var keys = []string{"mode", "host", "port", "dir", "db", "loglevel", "maxfilesize", "textmode", "zoom", "rasterizer"}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.StorageDir)
	viper.SetDefault("db", cfg.DatabasePath)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("textmode", cfg.TextMode)
	viper.SetDefault("zoom", cfg.Zoom)
	viper.SetDefault("rasterizer", cfg.Rasterizer)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for SSE over HTTP")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.StorageDir, "Storage directory for uploaded templates and filled documents")
	pflag.String("db", cfg.DatabasePath, "SQLite database path (default <dir>/forms.db)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum base document size in bytes")
	pflag.String("textmode", cfg.TextMode, "How text values are drawn: 'raster' or 'native'")
	pflag.Float64("zoom", cfg.Zoom, "Default zoom for rendered template pages")
	pflag.String("rasterizer", cfg.Rasterizer, "Page rasterizer executable")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range keys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Forms - A Model Context Protocol server for PDF form templates and requests\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/var/lib/forms                     "+
			"# stdio mode with custom storage\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/var/lib/forms       # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, key := range keys {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", EnvPrefix, strings.ToUpper(key))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.StorageDir = viper.GetString("dir")
	cfg.DatabasePath = viper.GetString("db")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.TextMode = viper.GetString("textmode")
	cfg.Zoom = viper.GetFloat64("zoom")
	cfg.Rasterizer = viper.GetString("rasterizer")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters when listening
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.StorageDir == "" {
		return errors.New("storage directory cannot be empty")
	}

	if _, err := os.Stat(c.StorageDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.StorageDir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create storage directory %s: %w", c.StorageDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access storage directory %s: %w", c.StorageDir, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.TextMode != TextModeRaster && c.TextMode != TextModeNative {
		return fmt.Errorf("invalid text mode: %s (must be one of: raster, native)", c.TextMode)
	}

	if c.Zoom <= 0 {
		return errors.New("zoom must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Database returns the SQLite database path.
func (c *Config) Database() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.StorageDir, DefaultDBName)
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, StorageDir: %s, Database: %s, TextMode: %s, Zoom: %g, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.StorageDir, c.Database(), c.TextMode, c.Zoom, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in SSE server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
