// Package config loads the comfyparams YAML configuration.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/richinsley/comfyparams/extract"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// Server is the address of a ComfyUI instance.
type Server struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
}

// EntryTypes overrides the node types extraction starts from. Empty lists keep the defaults.
type EntryTypes struct {
	Samplers []string `yaml:"samplers,omitempty"`
	Loras    []string `yaml:"loras,omitempty"`
	ClipSkip []string `yaml:"clip_skip,omitempty"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`
	Workers  int    `yaml:"workers"`
	MaxDepth int    `yaml:"max_depth"`
	Server   Server `yaml:"server"`
	// Aliases maps custom node types to the built-in type whose processor handles them.
	Aliases    map[string]string `yaml:"aliases,omitempty"`
	EntryTypes EntryTypes        `yaml:"entry_types,omitempty"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Workers:  4,
		MaxDepth: extract.DefaultMaxDepth,
		Server: Server{
			Address:  "localhost",
			Port:     8188,
			Protocol: "http",
		},
		Aliases: make(map[string]string),
	}
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the configuration schema and decodes it over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	if err := Validate(data); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Workers == 0 {
		c.Workers = def.Workers
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Protocol == "" {
		c.Server.Protocol = def.Server.Protocol
	}
	if c.Aliases == nil {
		c.Aliases = def.Aliases
	}
}

// Validate checks a YAML document against the configuration schema.
func Validate(data []byte) error {
	docJSON, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(docJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// Apply registers the configured aliases with reg, in name order.
func (c *Config) Apply(reg *extract.Registry) error {
	names := make([]string, 0, len(c.Aliases))
	for name := range c.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := reg.Alias(name, c.Aliases[name]); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns the entry types to parse with, filling unset lists with the defaults.
func (c *Config) Entries() extract.EntryTypes {
	entries := extract.DefaultEntryTypes()
	if len(c.EntryTypes.Samplers) != 0 {
		entries.Samplers = c.EntryTypes.Samplers
	}
	if len(c.EntryTypes.Loras) != 0 {
		entries.Loras = c.EntryTypes.Loras
	}
	if len(c.EntryTypes.ClipSkip) != 0 {
		entries.ClipSkip = c.EntryTypes.ClipSkip
	}
	return entries
}

// NewEvaluator builds an evaluator over reg using the configured entry types and depth.
func (c *Config) NewEvaluator(reg *extract.Registry, logger *slog.Logger) *extract.Evaluator {
	return extract.NewEvaluator(reg,
		extract.WithLogger(logger),
		extract.WithEntryTypes(c.Entries()),
		extract.WithMaxDepth(c.MaxDepth),
	)
}

// BaseURL returns the HTTP address of the configured server.
func (s Server) BaseURL() string {
	protocol := s.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, s.Address, s.Port)
}
