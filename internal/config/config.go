package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// Configuration is the complete application configuration. Swift
// endpoints live under services, keyed by the short instance name that
// appears as the host of a swift:// filesystem URI. One process may bind
// several endpoints at once, disambiguated by that name.
type Configuration struct {
	Global   GlobalConfig             `yaml:"global"`
	Services map[string]ServiceConfig `yaml:"services" validate:"dive"`
}

// GlobalConfig represents process-wide settings.
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port" validate:"gte=0,lte=65535"`
}

// ServiceConfig holds the per-endpoint connection settings for one named
// Swift service.
type ServiceConfig struct {
	AuthURL    string `yaml:"auth_url" validate:"required,url"`
	Username   string `yaml:"username" validate:"required"`
	Password   string `yaml:"password"`
	APIKey     string `yaml:"api_key"`
	Tenant     string `yaml:"tenant"`
	Region     string `yaml:"region"`
	AuthMethod string `yaml:"auth_method" validate:"omitempty,oneof=keystone swauth"`

	// Public selects the catalog's publicURL over internalURL.
	Public bool `yaml:"public"`

	Container string `yaml:"container"`

	RetryCount     int           `yaml:"retry_count" validate:"gte=0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
	ThrottleDelay  time.Duration `yaml:"throttle_delay" validate:"gte=0"`

	ProxyHost string `yaml:"proxy_host"`
	ProxyPort int    `yaml:"proxy_port" validate:"gte=0,lte=65535"`

	// PartitionSize is the output-stream part threshold in bytes.
	// Lowered in tests to exercise multipart uploads cheaply.
	PartitionSize int64 `yaml:"partition_size" validate:"gte=0"`
}

// Defaults applied by Bind when a service omits the optional keys.
const (
	DefaultRetryCount     = 3
	DefaultConnectTimeout = 15 * time.Second
	DefaultProxyPort      = 8080
	DefaultAuthMethod     = "keystone"

	// DefaultPartitionSize is just below the 5 GB single-object limit
	// enforced by stock Swift clusters.
	DefaultPartitionSize = int64(4768709000)
)

// NewDefault returns a configuration with sensible defaults and no
// services configured.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			MetricsPort: 8080,
		},
		Services: map[string]ServiceConfig{},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overlays environment variables onto the configuration.
// Service-level variables apply to the instance named by SWIFTFS_SERVICE
// (default "swift"), creating it if absent.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("SWIFTFS_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("SWIFTFS_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("SWIFTFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}

	name := os.Getenv("SWIFTFS_SERVICE")
	if name == "" {
		name = "swift"
	}
	if c.Services == nil {
		c.Services = map[string]ServiceConfig{}
	}
	svc := c.Services[name]
	touched := false

	set := func(env string, apply func(string)) {
		if val := os.Getenv(env); val != "" {
			apply(val)
			touched = true
		}
	}

	set("SWIFTFS_AUTH_URL", func(v string) { svc.AuthURL = v })
	set("SWIFTFS_USERNAME", func(v string) { svc.Username = v })
	set("SWIFTFS_PASSWORD", func(v string) { svc.Password = v })
	set("SWIFTFS_API_KEY", func(v string) { svc.APIKey = v })
	set("SWIFTFS_TENANT", func(v string) { svc.Tenant = v })
	set("SWIFTFS_REGION", func(v string) { svc.Region = v })
	set("SWIFTFS_AUTH_METHOD", func(v string) { svc.AuthMethod = v })
	set("SWIFTFS_CONTAINER", func(v string) { svc.Container = v })
	set("SWIFTFS_PUBLIC", func(v string) { svc.Public = strings.ToLower(v) == "true" })
	set("SWIFTFS_RETRY_COUNT", func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			svc.RetryCount = n
		}
	})
	set("SWIFTFS_CONNECT_TIMEOUT", func(v string) {
		if d, err := time.ParseDuration(v); err == nil {
			svc.ConnectTimeout = d
		}
	})
	set("SWIFTFS_PARTITION_SIZE", func(v string) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			svc.PartitionSize = n
		}
	})

	if touched {
		c.Services[name] = svc
	}

	return nil
}

var validate = validator.New()

// Validate validates the configuration against its struct tags.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL, got %q", fe.Namespace(), fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
