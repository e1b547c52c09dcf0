package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Maintenance MaintenanceConfig `yaml:"maintenance" json:"maintenance"`
	Auth        AuthConfig        `yaml:"auth" json:"-"`
	Security    SecurityConfig    `yaml:"security" json:"security"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Backup      BackupConfig      `yaml:"backup" json:"-"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
	Events      EventsConfig      `yaml:"events" json:"events"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string    `yaml:"host" json:"host"`
	Port int       `yaml:"port" json:"port"`
	Path string    `yaml:"path" json:"path"`
	TLS  TLSConfig `yaml:"tls" json:"tls"`
}

// TLSConfig contains TLS/HTTPS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
}

// MaintenanceConfig describes the guarded operation and the files it touches.
// Relative paths are resolved against BaseDir, which defaults to the working
// directory at call time.
type MaintenanceConfig struct {
	Operation     string `yaml:"operation" json:"operation"`
	TargetFile    string `yaml:"target_file" json:"target_file"`
	BaseDir       string `yaml:"base_dir" json:"base_dir"`
	BackupDir     string `yaml:"backup_dir" json:"backup_dir"`
	BackupPrefix  string `yaml:"backup_prefix" json:"backup_prefix"`
	BackupDirMode string `yaml:"backup_dir_mode" json:"backup_dir_mode"`
	AuditLog      string `yaml:"audit_log" json:"audit_log"`
	RequireBackup bool   `yaml:"require_backup" json:"require_backup"`
}

// AuthConfig selects how the request token is verified
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	TokenHash string `yaml:"token_hash"`
	JWTSecret string `yaml:"jwt_secret"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" json:"cors"`
	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers are
	// believed when resolving the client IP. Empty trusts no proxy.
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`
}

// RateLimitConfig contains rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CORSConfig contains CORS settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// DatabaseConfig contains settings for the audit database
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// BackupConfig contains mirror and retention settings
type BackupConfig struct {
	Mirror    MirrorConfig    `yaml:"mirror"`
	Retention RetentionConfig `yaml:"retention"`
}

// MirrorConfig describes an optional secondary destination for backups
type MirrorConfig struct {
	Type string `yaml:"type"` // "", "local", "sftp", "s3"
	Path string `yaml:"path"`

	SFTPHost        string `yaml:"sftp_host"`
	SFTPPort        int    `yaml:"sftp_port"`
	SFTPUsername    string `yaml:"sftp_username"`
	SFTPPassword    string `yaml:"sftp_password"`
	SFTPKeyPath     string `yaml:"sftp_key_path"`
	SFTPPassphrase  string `yaml:"sftp_key_passphrase"`
	KnownHostsPath  string `yaml:"known_hosts_path"`
	TrustOnFirstUse bool   `yaml:"trust_on_first_use"`

	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Endpoint  string `yaml:"s3_endpoint"`
}

// RetentionConfig bounds how many backups are kept
type RetentionConfig struct {
	Keep     int    `yaml:"keep"`
	Schedule string `yaml:"schedule"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// MetricsConfig contains prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// EventsConfig toggles the websocket result stream
type EventsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Auth modes
const (
	AuthModeStatic = "static"
	AuthModeBcrypt = "bcrypt"
	AuthModeJWT    = "jwt"
)

// RetentionParser accepts standard five-field specs, an optional leading
// seconds field and descriptors such as @hourly.
var RetentionParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Path: "/api/v1/maintenance",
		},
		Maintenance: MaintenanceConfig{
			Operation:     "system_reset",
			TargetFile:    "index.html",
			BackupDir:     "sys_backups",
			BackupPrefix:  "sys_backup_",
			BackupDirMode: "0755",
			AuditLog:      "system_maintenance.log",
		},
		Auth: AuthConfig{
			Mode: AuthModeStatic,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 30,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-System-Token"},
			},
		},
		Database: DatabaseConfig{
			Enabled: true,
			Path:    "./data/maintenance.db",
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{
				Keep:     0,
				Schedule: "@hourly",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Events: EventsConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := Default()

	configPath := GetConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.normalizePaths(configPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if token := os.Getenv("MAINTENANCE_TOKEN"); token != "" {
		c.Auth.Token = token
	}
	if hash := os.Getenv("MAINTENANCE_TOKEN_HASH"); hash != "" {
		c.Auth.TokenHash = hash
	}
	if secret := os.Getenv("MAINTENANCE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if baseDir := os.Getenv("MAINTENANCE_BASE_DIR"); baseDir != "" {
		c.Maintenance.BaseDir = baseDir
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if raw := os.Getenv("REQUIRE_BACKUP"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("REQUIRE_BACKUP: %w", err)
		}
		c.Maintenance.RequireBackup = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeStatic:
		if err := checkSecret("MAINTENANCE_TOKEN", c.Auth.Token); err != nil {
			return err
		}
	case AuthModeBcrypt:
		if err := checkSecret("MAINTENANCE_TOKEN_HASH", c.Auth.TokenHash); err != nil {
			return err
		}
	case AuthModeJWT:
		if err := checkSecret("MAINTENANCE_JWT_SECRET", c.Auth.JWTSecret); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	if strings.TrimSpace(c.Maintenance.Operation) == "" {
		return fmt.Errorf("maintenance.operation must be set")
	}

	target := c.Maintenance.TargetFile
	if strings.TrimSpace(target) == "" || filepath.Base(target) != target {
		return fmt.Errorf("maintenance.target_file must be a bare file name")
	}

	if _, err := c.Maintenance.DirMode(); err != nil {
		return err
	}

	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /")
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS is enabled but cert_file or key_file is missing")
		}
	}

	for _, proxy := range c.Security.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("invalid security.trusted_proxies entry %q", proxy)
		}
	}

	switch c.Backup.Mirror.Type {
	case "", "local", "sftp", "s3":
	default:
		return fmt.Errorf("unsupported backup mirror type: %s", c.Backup.Mirror.Type)
	}

	if c.Backup.Retention.Keep < 0 {
		return fmt.Errorf("backup.retention.keep must not be negative")
	}
	if c.Backup.Retention.Keep > 0 {
		if strings.TrimSpace(c.Maintenance.BackupPrefix) == "" {
			return fmt.Errorf("maintenance.backup_prefix must be set when backup retention is enabled")
		}
		if _, err := RetentionParser.Parse(c.Backup.Retention.Schedule); err != nil {
			return fmt.Errorf("invalid backup.retention.schedule %q: %w", c.Backup.Retention.Schedule, err)
		}
	}

	return nil
}

func checkSecret(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must be set", name)
	}
	if strings.HasPrefix(value, "${") {
		return fmt.Errorf("%s contains unexpanded environment variable", name)
	}
	return nil
}

// DirMode parses BackupDirMode as an octal permission
func (m MaintenanceConfig) DirMode() (os.FileMode, error) {
	raw := strings.TrimSpace(m.BackupDirMode)
	if raw == "" {
		return 0755, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(raw, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid backup_dir_mode %q: %w", m.BackupDirMode, err)
	}
	return os.FileMode(v).Perm(), nil
}

func resolveConfigPath() string {
	candidates := []string{"../configs/config.yaml", "./configs/config.yaml"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "./configs/config.yaml"
}

// GetConfigPath returns the resolved config path
func GetConfigPath() string {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = resolveConfigPath()
	}
	return configPath
}

// normalizePaths makes service-owned paths absolute relative to the config
// location. Maintenance.BaseDir stays empty when unset so it tracks the
// working directory at call time.
func (c *Config) normalizePaths(configPath string) {
	baseDir := filepath.Dir(configPath)
	if !filepath.IsAbs(baseDir) {
		if absBase, err := filepath.Abs(baseDir); err == nil {
			baseDir = absBase
		}
	}

	rootDir := baseDir
	if filepath.Base(baseDir) == "configs" {
		rootDir = filepath.Dir(baseDir)
	}

	resolvePath := func(value string) string {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return ""
		}
		if filepath.IsAbs(trimmed) {
			return filepath.Clean(trimmed)
		}
		return filepath.Clean(filepath.Join(rootDir, trimmed))
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = filepath.Join(rootDir, "data", "maintenance.db")
	}
	c.Database.Path = resolvePath(c.Database.Path)
	c.Logging.File = resolvePath(c.Logging.File)
	c.Maintenance.BaseDir = resolvePath(c.Maintenance.BaseDir)

	if c.Backup.Mirror.Type == "local" {
		c.Backup.Mirror.Path = resolvePath(c.Backup.Mirror.Path)
	}
	if c.Backup.Mirror.Type == "sftp" && strings.TrimSpace(c.Backup.Mirror.KnownHostsPath) == "" {
		c.Backup.Mirror.KnownHostsPath = filepath.Join(rootDir, "data", "known_hosts")
	}
	c.Backup.Mirror.KnownHostsPath = resolvePath(c.Backup.Mirror.KnownHostsPath)
}
