// Package config loads toolstats settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "toolstats.yaml"
	homeConfigName    = "config.yaml"
)

// File is the on-disk configuration shape. Empty values mean "not set";
// flag values and built-in defaults fill the gaps. Durations are Go
// duration strings ("168h", "30s").
type File struct {
	GalaxyURL    string `yaml:"galaxy_url,omitempty"`
	JobsDSN      string `yaml:"jobs_dsn,omitempty"`
	OlderThan    string `yaml:"older_than,omitempty"`
	Schedule     string `yaml:"schedule,omitempty"`
	HTTPTimeout  string `yaml:"http_timeout,omitempty"`
	QueryTimeout string `yaml:"query_timeout,omitempty"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// Load reads and parses the config file at path. String values go through
// environment expansion, so ${VAR} references resolve at load time.
func Load(path string) (File, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return File{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	cfg.expandEnv()
	return cfg, nil
}

func (f *File) expandEnv() {
	f.GalaxyURL = os.ExpandEnv(f.GalaxyURL)
	f.JobsDSN = os.ExpandEnv(f.JobsDSN)
	f.OlderThan = os.ExpandEnv(f.OlderThan)
	f.Schedule = os.ExpandEnv(f.Schedule)
	f.HTTPTimeout = os.ExpandEnv(f.HTTPTimeout)
	f.QueryTimeout = os.ExpandEnv(f.QueryTimeout)
	f.OTLPEndpoint = os.ExpandEnv(f.OTLPEndpoint)
}

// OlderThanDuration parses the older_than value. An empty value returns
// zero with no error.
func (f File) OlderThanDuration() (time.Duration, error) {
	return parseDuration("older_than", f.OlderThan)
}

// HTTPTimeoutDuration parses the http_timeout value. An empty value
// returns zero with no error.
func (f File) HTTPTimeoutDuration() (time.Duration, error) {
	return parseDuration("http_timeout", f.HTTPTimeout)
}

// QueryTimeoutDuration parses the query_timeout value. An empty value
// returns zero with no error.
func (f File) QueryTimeoutDuration() (time.Duration, error) {
	return parseDuration("query_timeout", f.QueryTimeout)
}

func parseDuration(field, value string) (time.Duration, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(clean)
	if err != nil {
		return 0, fmt.Errorf("config field %s: %w", field, err)
	}
	return d, nil
}

// Discover resolves the config file location with first-match semantics.
func Discover(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverFrom(explicitPath, cwd, homeDir)
}

// DiscoverFrom is a testable variant of Discover.
func DiscoverFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".toolstats", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// An explicit path that does not exist is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}
