// Package config loads SysInfo configuration through Viper.
//
// Precedence, lowest first: built-in defaults, the optional YAML file passed
// with --config, then SYSINFO_* environment variables (dots become
// underscores, so SYSINFO_SERVER_PORT sets server.port).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SYSINFO"

// Config is a nil-safe view over a Viper instance, optionally scoped to a
// key prefix. Scoped views read through to the root so environment
// overrides still apply.
type Config struct {
	v      *viper.Viper
	prefix string
}

// New wraps v. A nil v behaves as an empty configuration.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

// Load reads configuration from defaults, the file at path (if non-empty),
// and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("sysinfo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sysinfo")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return New(v), nil
}

// SetDefaults registers every known key with its default value.
func SetDefaults(v *viper.Viper) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "sysinfo"
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5058)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.max_connections", 1024)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit.rps", 50.0)
	v.SetDefault("server.rate_limit.burst", 100)
	v.SetDefault("server.rate_limit.max_clients", 4096)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("stream.default_interval", time.Second)
	v.SetDefault("telemetry.cpu_sample_window", time.Duration(-1))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("modules.rest.enabled", true)

	v.SetDefault("modules.grpc.enabled", true)
	v.SetDefault("modules.grpc.host", "0.0.0.0")
	v.SetDefault("modules.grpc.port", 5001)
	v.SetDefault("modules.grpc.max_recv_bytes", 2<<20)
	v.SetDefault("modules.grpc.max_send_bytes", 5<<20)

	v.SetDefault("modules.mqtt.enabled", false)
	v.SetDefault("modules.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("modules.mqtt.topic", "sysinfo/snapshot")
	v.SetDefault("modules.mqtt.client_id", "sysinfo-"+host)
	v.SetDefault("modules.mqtt.interval", 5*time.Second)
	v.SetDefault("modules.mqtt.qos", 0)
	v.SetDefault("modules.mqtt.retained", false)
	v.SetDefault("modules.mqtt.username", "")
	v.SetDefault("modules.mqtt.password", "")
	v.SetDefault("modules.mqtt.publish_timeout", 5*time.Second)
	v.SetDefault("modules.mqtt.connect_timeout", 10*time.Second)

	v.SetDefault("modules.discovery.enabled", false)
	v.SetDefault("modules.discovery.instance", host)
	v.SetDefault("modules.discovery.service", "_sysinfo._tcp")
	v.SetDefault("modules.discovery.domain", "local.")
	v.SetDefault("modules.discovery.ips", []string{})

	v.SetDefault("modules.mcp.enabled", false)
}

// Viper exposes the underlying root instance.
func (c *Config) Viper() *viper.Viper { return c.v }

func (c *Config) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + "." + k
}

func (c *Config) GetString(key string) string { return c.v.GetString(c.key(key)) }

func (c *Config) GetStringSlice(key string) []string { return c.v.GetStringSlice(c.key(key)) }

func (c *Config) GetInt(key string) int { return c.v.GetInt(c.key(key)) }

func (c *Config) GetBool(key string) bool { return c.v.GetBool(c.key(key)) }

func (c *Config) GetFloat64(key string) float64 { return c.v.GetFloat64(c.key(key)) }

func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(c.key(key)) }

func (c *Config) IsSet(key string) bool { return c.v.IsSet(c.key(key)) }

// Sub returns a view scoped to key. It is never nil; a missing subtree reads
// as zero values.
func (c *Config) Sub(key string) *Config {
	return &Config{v: c.v, prefix: c.key(key)}
}

// Unmarshal decodes the configuration under this view into target.
func (c *Config) Unmarshal(target any) error {
	if c.prefix == "" {
		return c.v.Unmarshal(target)
	}
	return c.v.UnmarshalKey(c.prefix, target)
}
