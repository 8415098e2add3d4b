// Package config loads fuzzer configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/apfuzz/internal/activity"
)

// Config holds the application configuration.
type Config struct {
	// Domain is the public host (and optional port) the fuzzer is reached at.
	Domain  string `yaml:"domain" validate:"required,hostname_port|hostname_rfc1123"`
	Account string `yaml:"account" validate:"required,excludesall=/@?#"`
	Port    int    `yaml:"port" validate:"min=1,max=65535"`
	KeyBits int    `yaml:"key_bits" validate:"min=1024"`

	Target   Target    `yaml:"target"`
	Actor    Actor     `yaml:"actor"`
	Database Databases `yaml:"database"`
}

// Target is where messages are delivered by default.
type Target struct {
	// Endpoint is the inbox URL signAndSend and the firehose post to.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	// UserID is the actor a Follow is addressed to.
	UserID string `yaml:"user_id" validate:"omitempty,url"`
}

// Actor is the presentation of the operating account.
type Actor struct {
	DisplayName string `yaml:"display_name" validate:"required"`
	Description string `yaml:"description"`
	Avatar      string `yaml:"avatar" validate:"omitempty,url"`
}

// Databases are the SQLite file paths.
type Databases struct {
	Fuzzer      string `yaml:"fuzzer" validate:"required"`
	Observatory string `yaml:"observatory" validate:"required"`
}

// Default returns a Config with defaults. Domain has no default.
func Default() Config {
	return Config{
		Account: "fuzzer",
		Port:    3000,
		KeyBits: 4096,
		Actor: Actor{
			DisplayName: "Fuzzer",
			Description: "An ActivityPub fuzzing tool",
		},
		Database: Databases{
			Fuzzer:      "fuzzer.db",
			Observatory: "observatory.db",
		},
	}
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from path, then applies environment overrides.
// A missing or empty path yields the defaults.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides fields from the variables the fuzzer has always read.
func (c *Config) applyEnv(lookup LookupFunc) error {
	strs := map[string]*string{
		"DOMAIN":                  &c.Domain,
		"ACCOUNT":                 &c.Account,
		"DEFAULT_TARGET_ENDPOINT": &c.Target.Endpoint,
		"DEFAULT_TARGET_USER_ID":  &c.Target.UserID,
		"ACTOR_DISPLAY_NAME":      &c.Actor.DisplayName,
		"ACTOR_DESCRIPTION":       &c.Actor.Description,
		"ACTOR_AVATAR":            &c.Actor.Avatar,
		"FUZZER_DB":               &c.Database.Fuzzer,
		"OBSERVATORY_DB":          &c.Database.Observatory,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %q is not a number", v)
		}
		c.Port = port
	}
	return nil
}

// applyDefaults fills values that depend on other fields.
func (c *Config) applyDefaults() {
	if c.Actor.Avatar == "" && c.Domain != "" {
		c.Actor.Avatar = activity.Site{Domain: c.Domain}.ImageURL("cat.png")
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	// Drop the leading "Config." from the namespace.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", field, fe.Value())
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s, got %v", field, map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// Site returns the URL builder for this configuration.
func (c *Config) Site() activity.Site {
	return activity.Site{Domain: c.Domain, Account: c.Account}
}

// ActorInfo returns the operating account's presentation.
func (c *Config) ActorInfo() activity.ActorInfo {
	return activity.ActorInfo{
		DisplayName: c.Actor.DisplayName,
		Description: c.Actor.Description,
		Avatar:      c.Actor.Avatar,
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
