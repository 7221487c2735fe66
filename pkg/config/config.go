// Package config loads task manager settings from the environment, with an
// optional .env file autoloaded the way local development expects.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wehubfusion/Sisyphus/pkg/proxy"
	"github.com/wehubfusion/Sisyphus/pkg/task"
)

// EnvPrefix namespaces every environment variable this package reads, e.g.
// SISYPHUS_MAX_WORKERS.
const EnvPrefix = "SISYPHUS"

// Settings carries the environment-sourced manager configuration. Scalar
// fields are pointers so "unset" stays distinguishable from zero values;
// empty strings in the environment count as unset.
type Settings struct {
	TaskName   *string
	MaxWorkers *int
	Shuffle    *bool
	Retries    *int
	RetryDelay *time.Duration
	Proxy      proxy.Config
}

// Options converts the settings into manager construction options, skipping
// unset fields so manager defaults and later options stay in charge.
func (s Settings) Options() []task.Option {
	var opts []task.Option
	if s.TaskName != nil {
		opts = append(opts, task.WithTaskName(*s.TaskName))
	}
	if s.MaxWorkers != nil {
		opts = append(opts, task.WithMaxWorkers(*s.MaxWorkers))
	}
	if s.Shuffle != nil {
		opts = append(opts, task.WithShuffle(*s.Shuffle))
	}
	if s.Retries != nil {
		opts = append(opts, task.WithRetries(*s.Retries))
	}
	if s.RetryDelay != nil {
		opts = append(opts, task.WithRetryDelay(*s.RetryDelay))
	}
	if s.Proxy != (proxy.Config{}) {
		opts = append(opts, task.WithProxy(s.Proxy))
	}
	return opts
}

type loader struct {
	envFile string
}

// LoadOption adjusts how Load reads the environment.
type LoadOption func(*loader)

// WithEnvFile points Load at a different .env file. An empty path disables
// the autoload.
func WithEnvFile(path string) LoadOption {
	return func(l *loader) {
		l.envFile = path
	}
}

// Load reads the manager settings from the environment. A .env file in the
// working directory is loaded first without overriding variables that are
// already exported; a missing file is fine.
func Load(opts ...LoadOption) (Settings, error) {
	l := loader{envFile: ".env"}
	for _, opt := range opts {
		opt(&l)
	}

	if l.envFile != "" {
		if err := loadEnvFile(l.envFile); err != nil {
			return Settings{}, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var (
		s   Settings
		err error
	)
	s.TaskName = stringVar(v, "task_name")
	if s.MaxWorkers, err = intVar(v, "max_workers"); err != nil {
		return Settings{}, err
	}
	if s.Shuffle, err = boolVar(v, "shuffle"); err != nil {
		return Settings{}, err
	}
	if s.Retries, err = intVar(v, "retries"); err != nil {
		return Settings{}, err
	}
	if s.RetryDelay, err = durationVar(v, "retry_delay"); err != nil {
		return Settings{}, err
	}

	s.Proxy.Proxy = v.GetString("proxy")
	s.Proxy.ProxyIPv6 = v.GetString("proxy_ipv6")
	s.Proxy.ProxyAPI = v.GetString("proxy_api")
	s.Proxy.ProxyIPv6API = v.GetString("proxy_ipv6_api")

	useIPv6, err := boolVar(v, "use_proxy_ipv6")
	if err != nil {
		return Settings{}, err
	}
	s.Proxy.UseIPv6First = useIPv6 != nil && *useIPv6

	disabled, err := boolVar(v, "disable_proxy")
	if err != nil {
		return Settings{}, err
	}
	s.Proxy.Disabled = disabled != nil && *disabled

	return s, nil
}

// loadEnvFile exports the entries of a dotenv file into the process
// environment. Variables that are already set keep their values.
func loadEnvFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("failed to export %s: %w", name, err)
		}
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func stringVar(v *viper.Viper, key string) *string {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil
	}
	return &raw
}

func intVar(v *viper.Viper, key string) (*int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envName(key), err)
	}
	return &n, nil
}

func boolVar(v *viper.Viper, key string) (*bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envName(key), err)
	}
	return &b, nil
}

// durationVar accepts either a Go duration string ("250ms", "2s") or a bare
// number of seconds ("0.5", "2").
func durationVar(v *viper.Viper, key string) (*time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return &d, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is neither a duration nor seconds", envName(key), raw)
	}
	d := time.Duration(secs * float64(time.Second))
	return &d, nil
}
