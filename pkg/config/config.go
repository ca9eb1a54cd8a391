package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrisonrobin/ganttbridge/pkg/mapping"
	"github.com/kelseyhightower/envconfig"
)

const (
	xdgAppName = "ganttbridge"
	configFile = "config.json"
	envPrefix  = "GANTTBRIDGE"
)

// Column is one grid column of the Gantt widget.
type Column struct {
	Type  string `json:"type"`
	Field string `json:"field"`
	Width int    `json:"width"`
}

// SelectionMode mirrors the widget's selectionMode option.
type SelectionMode struct {
	MultiSelect bool `json:"multiSelect"`
}

// Gantt is the static widget configuration handed to the page.
type Gantt struct {
	Columns       []Column      `json:"columns"`
	ViewPreset    string        `json:"viewPreset"`
	BarMargin     int           `json:"barMargin"`
	SelectionMode SelectionMode `json:"selectionMode"`
}

type Config struct {
	EnvironmentURL string `json:"environment_url" envconfig:"ENVIRONMENT_URL"`
	APIVersion     string `json:"api_version" envconfig:"API_VERSION"`

	TenantID     string `json:"tenant_id" envconfig:"TENANT_ID"`
	ClientID     string `json:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret string `json:"client_secret,omitempty" envconfig:"CLIENT_SECRET"`
	// TokenURL overrides the Microsoft identity platform endpoint derived
	// from TenantID.
	TokenURL string `json:"token_url,omitempty" envconfig:"TOKEN_URL"`
	// AccessToken skips the client-credentials flow. Development only.
	AccessToken string `json:"access_token,omitempty" envconfig:"ACCESS_TOKEN"`

	Prefix              string `json:"prefix" envconfig:"PREFIX"`
	TaskTable           string `json:"task_table" envconfig:"TASK_TABLE"`
	DependencyTable     string `json:"dependency_table" envconfig:"DEPENDENCY_TABLE"`
	TaskEntitySet       string `json:"task_entity_set,omitempty" envconfig:"TASK_ENTITY_SET"`
	DependencyEntitySet string `json:"dependency_entity_set,omitempty" envconfig:"DEPENDENCY_ENTITY_SET"`

	ListenAddr  string `json:"listen_addr" envconfig:"LISTEN_ADDR"`
	Harness     bool   `json:"harness" envconfig:"HARNESS"`
	MaxInFlight int    `json:"max_in_flight" envconfig:"MAX_IN_FLIGHT"`

	LogLevel  string `json:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"log_format" envconfig:"LOG_FORMAT"`

	// Widget assets, served from wherever the licensed build is hosted.
	ScriptURL string `json:"script_url" envconfig:"SCRIPT_URL"`
	StyleURL  string `json:"style_url" envconfig:"STYLE_URL"`

	Gantt Gantt `json:"gantt" ignored:"true"`
}

// DefaultGantt is the widget configuration. A gantt block in the config file
// overrides it field by field, so explicit zero values are kept.
func DefaultGantt() Gantt {
	return Gantt{
		Columns:    []Column{{Type: "name", Field: "name", Width: 250}},
		ViewPreset: "weekAndDayLetter",
		BarMargin:  10,
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{Gantt: DefaultGantt()}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = "v9.2"
	}
	if c.Prefix == "" {
		c.Prefix = "cr3c6_"
	}
	if c.TaskTable == "" {
		c.TaskTable = "gantttask"
	}
	if c.DependencyTable == "" {
		c.DependencyTable = "ganttdependency"
	}
	// Tables whose sets do not follow Pluralize (e.g. cr3c6_gantttaskes) need
	// the entity set names configured explicitly.
	if c.TaskEntitySet == "" {
		c.TaskEntitySet = Pluralize(c.Prefix + c.TaskTable)
	}
	if c.DependencyEntitySet == "" {
		c.DependencyEntitySet = Pluralize(c.Prefix + c.DependencyTable)
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.ScriptURL == "" {
		c.ScriptURL = "/static/gantt.umd.js"
	}
	if c.StyleURL == "" {
		c.StyleURL = "/static/gantt.stockholm.css"
	}
}

// Validate reports settings the bridge cannot run without.
func (c *Config) Validate() error {
	if c.Harness {
		return nil
	}
	var missing []string
	if c.EnvironmentURL == "" {
		missing = append(missing, "environment_url")
	}
	if c.AccessToken == "" {
		if c.TenantID == "" && c.TokenURL == "" {
			missing = append(missing, "tenant_id")
		}
		if c.ClientID == "" {
			missing = append(missing, "client_id")
		}
		if c.ClientSecret == "" {
			missing = append(missing, "client_secret")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Schema returns the table naming used by the field mapper.
func (c *Config) Schema() mapping.Schema {
	return mapping.Schema{
		Prefix:              c.Prefix,
		TaskTable:           c.TaskTable,
		DependencyTable:     c.DependencyTable,
		TaskEntitySet:       c.TaskEntitySet,
		DependencyEntitySet: c.DependencyEntitySet,
	}
}

// Pluralize derives an entity set name from a table logical name using the
// common English rules. Makers can provision set names that differ (some
// solutions append "es" to every table), which is why both set names are
// configurable.
func Pluralize(name string) string {
	switch {
	case name == "":
		return ""
	case strings.HasSuffix(name, "y") && len(name) > 1 && !strings.ContainsAny(name[len(name)-2:len(name)-1], "aeiou"):
		return name[:len(name)-1] + "ies"
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"), strings.HasSuffix(name, "ch"), strings.HasSuffix(name, "sh"):
		return name + "es"
	default:
		return name + "s"
	}
}

func GetConfigPath() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName, configFile), nil
}

// Load reads path (the default location when empty), applies GANTTBRIDGE_*
// environment overrides and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{Gantt: DefaultGantt()}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
