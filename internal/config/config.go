// internal/config/config.go
//
// This package handles configuration and the .techdir directory structure.
// Every project that runs techdir gets a .techdir/ folder created in its root.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".techdir"

	defaultAPIBaseURL     = "http://127.0.0.1:5000"
	defaultAPITimeoutSecs = 15
	defaultRoleKey        = "userRole"
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultLogLevel       = "info"
	defaultStubHost       = "127.0.0.1"
	defaultStubPort       = 5000
)

// Role store drivers accepted by role.store.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

const defaultProjectConfigYAML = `# techdir project configuration
version: 1

# REST endpoint serving /api/technicians.
api:
  base_url: http://127.0.0.1:5000
  timeout_seconds: 15

# Where the selected operator role is remembered between runs.
# store: file | sqlite | redis | memory
role:
  store: file
  key: userRole
  # redis:
  #   addr: 127.0.0.1:6379
  #   db: 0

logging:
  level: info

# Local reference API started by techdir-stub.
stub:
  host: 127.0.0.1
  port: 5000
  seed: true
`

// APIConfig points the client at the technician API.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RedisConfig holds Redis connection values for the redis role store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// RoleConfig selects the persistence adapter for the operator role.
type RoleConfig struct {
	Store string      `yaml:"store"`
	Key   string      `yaml:"key"`
	Redis RedisConfig `yaml:"redis,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StubConfig configures the reference API server.
type StubConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	Seed *bool  `yaml:"seed,omitempty"`
}

// ProjectConfig models .techdir/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Role    RoleConfig    `yaml:"role"`
	Logging LoggingConfig `yaml:"logging"`
	Stub    StubConfig    `yaml:"stub,omitempty"`
}

// Config holds the runtime configuration for techdir.
type Config struct {
	// ProjectDir is the directory where the user ran `techdir` from
	ProjectDir string

	// ConfigDir is ProjectDir/.techdir
	ConfigDir string

	Project ProjectConfig
}

// InitDir creates the .techdir directory structure in the given project directory.
//
// Structure created:
// .techdir/
// ├── logs/         <- techdir.log
// ├── state/        <- role.yaml / preferences.db
// └── config.yaml
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, Dir)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
// A .env file in the project directory is loaded first so its values can
// act as environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(projectDir, ".env")); err != nil {
		return nil, err
	}
	cfg := &Config{
		ProjectDir: projectDir,
		ConfigDir:  filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.ConfigDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.ConfigDir, "state")
}

// RoleStatePath is the yaml file used by the file role store.
func (c *Config) RoleStatePath() string {
	return filepath.Join(c.StateDir(), "role.yaml")
}

// PreferencesDBPath is the sqlite database used by the sqlite role store.
func (c *Config) PreferencesDBPath() string {
	return filepath.Join(c.StateDir(), "preferences.db")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ConfigDir, "config.yaml")
}

// API returns the effective API settings.
func (c *Config) API() APIConfig {
	return c.Project.API
}

// Role returns the effective role persistence settings.
func (c *Config) Role() RoleConfig {
	return c.Project.Role
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string {
	return c.Project.Logging.Level
}

// Stub returns the reference API settings.
func (c *Config) Stub() StubConfig {
	return c.Project.Stub
}

// SetRoleStore switches the role persistence driver and writes the change
// back to .techdir/config.yaml. Only role.store is rewritten: values that
// came from the environment or .env stay out of the file, and the file's
// comments survive.
func (c *Config) SetRoleStore(store string) error {
	store = normalizeStore(store)
	switch store {
	case "":
		return fmt.Errorf("config: role store is required")
	case StoreFile, StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("config: role.store must be one of file, sqlite, redis, memory")
	}
	if err := c.saveProjectConfig(func(doc *yaml.Node) {
		setScalar(doc, store, "role", "store")
	}); err != nil {
		return err
	}
	if envString("TECHDIR_ROLE_STORE") == "" {
		c.Project.Role.Store = store
		c.Project.applyDefaults()
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	seed := true
	return ProjectConfig{
		Version: 1,
		API: APIConfig{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeoutSecs,
		},
		Role: RoleConfig{
			Store: StoreFile,
			Key:   defaultRoleKey,
		},
		Logging: LoggingConfig{Level: defaultLogLevel},
		Stub: StubConfig{
			Host: defaultStubHost,
			Port: defaultStubPort,
			Seed: &seed,
		},
	}
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(data) > 0 {
		var parsed ProjectConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		c.Project = parsed
	}
	c.Project.applyEnvOverrides()
	c.Project.normalize()
	c.Project.applyDefaults()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if v := envString("TECHDIR_API_URL"); v != "" {
		pc.API.BaseURL = v
	}
	if v, ok := envInt("TECHDIR_API_TIMEOUT_SECONDS"); ok {
		pc.API.TimeoutSeconds = v
	}
	if v := envString("TECHDIR_ROLE_STORE"); v != "" {
		pc.Role.Store = v
	}
	if v := envString("TECHDIR_ROLE_KEY"); v != "" {
		pc.Role.Key = v
	}
	if v := envString("TECHDIR_REDIS_ADDR"); v != "" {
		pc.Role.Redis.Addr = v
	}
	if v := envString("TECHDIR_REDIS_PASSWORD"); v != "" {
		pc.Role.Redis.Password = v
	}
	if v, ok := envInt("TECHDIR_REDIS_DB"); ok {
		pc.Role.Redis.DB = v
	}
	if v := envString("TECHDIR_LOG_LEVEL"); v != "" {
		pc.Logging.Level = v
	}
	if v := envString("TECHDIR_STUB_HOST"); v != "" {
		pc.Stub.Host = v
	}
	if v, ok := envInt("TECHDIR_STUB_PORT"); ok {
		pc.Stub.Port = v
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = defaultAPIBaseURL
	}
	if pc.API.TimeoutSeconds <= 0 {
		pc.API.TimeoutSeconds = defaultAPITimeoutSecs
	}
	if strings.TrimSpace(pc.Role.Store) == "" {
		pc.Role.Store = StoreFile
	}
	if strings.TrimSpace(pc.Role.Key) == "" {
		pc.Role.Key = defaultRoleKey
	}
	if pc.Role.Store == StoreRedis && strings.TrimSpace(pc.Role.Redis.Addr) == "" {
		pc.Role.Redis.Addr = defaultRedisAddr
	}
	if strings.TrimSpace(pc.Logging.Level) == "" {
		pc.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(pc.Stub.Host) == "" {
		pc.Stub.Host = defaultStubHost
	}
	if pc.Stub.Port == 0 {
		pc.Stub.Port = defaultStubPort
	}
	if pc.Stub.Seed == nil {
		seed := true
		pc.Stub.Seed = &seed
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.Role.Store = normalizeStore(pc.Role.Store)
	pc.Role.Key = strings.TrimSpace(pc.Role.Key)
	pc.Role.Redis.Addr = strings.TrimSpace(pc.Role.Redis.Addr)
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
	pc.Stub.Host = strings.TrimSpace(pc.Stub.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !strings.HasPrefix(pc.API.BaseURL, "http://") && !strings.HasPrefix(pc.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	switch pc.Role.Store {
	case StoreFile, StoreSQLite, StoreMemory:
	case StoreRedis:
		if pc.Role.Redis.Addr == "" {
			return fmt.Errorf("role.redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("role.store must be one of file, sqlite, redis, memory")
	}
	if pc.Stub.Port < 0 || pc.Stub.Port > 65535 {
		return fmt.Errorf("stub.port must be a valid TCP port")
	}
	return nil
}

func normalizeStore(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string) (int, bool) {
	raw := envString(key)
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

// saveProjectConfig applies edit to the file as written (or the default
// template when there is none), checks the result still loads, and writes
// it back.
func (c *Config) saveProjectConfig(edit func(doc *yaml.Node)) error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte(defaultProjectConfigYAML)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	edit(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}

	var check ProjectConfig
	if err := yaml.Unmarshal(buf.Bytes(), &check); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	check.normalize()
	check.applyDefaults()
	if err := check.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := os.MkdirAll(c.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure config dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

// setScalar sets the value at path inside a yaml document, creating
// mappings along the way.
func setScalar(doc *yaml.Node, value string, path ...string) {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
		}
		doc = doc.Content[0]
	}
	node := doc
	for i, key := range path {
		if node.Kind != yaml.MappingNode {
			*node = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		var child *yaml.Node
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == key {
				child = node.Content[j+1]
				break
			}
		}
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				child)
		}
		if i == len(path)-1 {
			child.Kind = yaml.ScalarNode
			child.Tag = "!!str"
			child.Value = value
			child.Content = nil
			child.Style = 0
		}
		node = child
	}
}
