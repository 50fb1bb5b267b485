// internal/config/config.go
//
// This package handles configuration and the .cvreview directory structure.
// Every working directory that uses cvreview gets a .cvreview/ folder holding
// the config file, logs and downloaded reports.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each working directory
	Dir = ".cvreview"

	DefaultBaseURL      = "http://localhost:8000"
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultMaxFiles     = 20
	DefaultMaxFileBytes = 10 << 20
	DefaultLogLevel     = "info"
)

// DefaultExtensions lists the document types the service accepts.
var DefaultExtensions = []string{".pdf", ".txt", ".docx"}

const defaultProjectConfigYAML = `# cvreview configuration
version: 1

api:
  base_url: http://localhost:8000
  timeout: 60s

# Status of every job is pulled at this cadence; the first query waits one interval.
polling:
  interval: 2s

submission:
  max_files: 20
  max_file_bytes: 10485760
  extensions: [.pdf, .txt, .docx]

downloads:
  dir: reports

# Read-only HTTP view of the current session state for external dashboards.
bridge:
  enabled: false
  host: 127.0.0.1
  port: 8766

logging:
  level: info
`

// APIConfig points at the analysis service.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PollingConfig controls the job status cadence.
type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// SubmissionConfig mirrors the service's upload constraints so bad input is
// rejected before any request.
type SubmissionConfig struct {
	MaxFiles     int      `yaml:"max_files"`
	MaxFileBytes int64    `yaml:"max_file_bytes"`
	Extensions   []string `yaml:"extensions"`
}

// DownloadsConfig says where report artifacts are written.
type DownloadsConfig struct {
	Dir string `yaml:"dir"`
}

// BridgeConfig captures the optional status bridge settings.
type BridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProjectConfig models .cvreview/config.yaml.
type ProjectConfig struct {
	Version    int              `yaml:"version"`
	API        APIConfig        `yaml:"api"`
	Polling    PollingConfig    `yaml:"polling"`
	Submission SubmissionConfig `yaml:"submission"`
	Downloads  DownloadsConfig  `yaml:"downloads"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory cvreview was started from
	ProjectDir string

	// StateDir is ProjectDir/.cvreview
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .cvreview directory structure in the given directory.
//
// Structure created:
// .cvreview/
// ├── config.yaml
// ├── logs/      <- cvreview.log
// └── reports/   <- downloaded XLSX/PDF reports
func InitDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, Dir)
	dirs := []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "reports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// Load reads .cvreview/config.yaml (when present), applies defaults and then
// environment overrides.
func Load(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	cfg.Project.normalize()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ConfigPath returns the on-disk location of the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// LogPath returns the log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "cvreview.log")
}

// ReportsDir resolves the download directory. Relative paths are anchored at
// the state directory.
func (c *Config) ReportsDir() string {
	dir := strings.TrimSpace(c.Project.Downloads.Dir)
	if dir == "" {
		dir = "reports"
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.StateDir, dir)
}

func (c *Config) loadProjectConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Polling: PollingConfig{Interval: DefaultPollInterval},
		Submission: SubmissionConfig{
			MaxFiles:     DefaultMaxFiles,
			MaxFileBytes: DefaultMaxFileBytes,
			Extensions:   append([]string(nil), DefaultExtensions...),
		},
		Downloads: DownloadsConfig{Dir: "reports"},
		Logging:   LoggingConfig{Level: DefaultLogLevel},
	}
}

func (pc *ProjectConfig) applyEnvOverrides() {
	pc.API.BaseURL = getEnv("CVREVIEW_API_URL", pc.API.BaseURL)
	pc.API.Timeout = getEnvAsDuration("CVREVIEW_API_TIMEOUT", pc.API.Timeout)
	pc.Polling.Interval = getEnvAsDuration("CVREVIEW_POLL_INTERVAL", pc.Polling.Interval)
	pc.Submission.MaxFiles = getEnvAsInt("CVREVIEW_MAX_FILES", pc.Submission.MaxFiles)
	pc.Downloads.Dir = getEnv("CVREVIEW_DOWNLOAD_DIR", pc.Downloads.Dir)
	pc.Logging.Level = getEnv("CVREVIEW_LOG_LEVEL", pc.Logging.Level)
}

func (pc *ProjectConfig) normalize() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	if pc.API.BaseURL == "" {
		pc.API.BaseURL = DefaultBaseURL
	}
	if pc.API.Timeout <= 0 {
		pc.API.Timeout = DefaultTimeout
	}
	if pc.Polling.Interval <= 0 {
		pc.Polling.Interval = DefaultPollInterval
	}
	if pc.Submission.MaxFiles <= 0 {
		pc.Submission.MaxFiles = DefaultMaxFiles
	}
	if pc.Submission.MaxFileBytes <= 0 {
		pc.Submission.MaxFileBytes = DefaultMaxFileBytes
	}
	pc.Submission.Extensions = normalizeExtensions(pc.Submission.Extensions)
	if len(pc.Submission.Extensions) == 0 {
		pc.Submission.Extensions = append([]string(nil), DefaultExtensions...)
	}
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
	if pc.Logging.Level == "" {
		pc.Logging.Level = DefaultLogLevel
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(pc.API.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("api.base_url %q must be an absolute http(s) url", pc.API.BaseURL)
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}

func normalizeExtensions(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
