package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultHost    = "api.mist.com"
	defaultEnvFile = "~/.mist_env"
	defaultLogFile = "./websocket.log"
)

// Config identifies the device shell to open and how to authenticate. It is
// built once at startup and passed by value.
type Config struct {
	Host     string
	Token    string
	SiteID   string
	DeviceID string
}

// envSettings are read from MIST_HOST, MIST_APITOKEN, MIST_SITE_ID and
// MIST_DEVICE_ID.
type envSettings struct {
	Host     string `envconfig:"HOST"`
	APIToken string `envconfig:"APITOKEN"`
	SiteID   string `envconfig:"SITE_ID"`
	DeviceID string `envconfig:"DEVICE_ID"`
}

// defaultConfig returns the built-in defaults. Site and device have no
// usable default.
func defaultConfig() Config {
	return Config{
		Host:     defaultHost,
		SiteID:   uuid.Nil.String(),
		DeviceID: uuid.Nil.String(),
	}
}

// LoadConfig loads envFile into the process environment (overriding variables
// already set) and lays any MIST_* values over defaults. A missing env file is
// not an error.
func LoadConfig(defaults Config, envFile string) (Config, error) {
	if envFile != "" {
		path, err := expandHome(envFile)
		if err != nil {
			return Config{}, err
		}
		if err := godotenv.Overload(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	var env envSettings
	if err := envconfig.Process("mist", &env); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	cfg := defaults
	if env.Host != "" {
		cfg.Host = env.Host
	}
	if env.APIToken != "" {
		cfg.Token = env.APIToken
	}
	if env.SiteID != "" {
		cfg.SiteID = env.SiteID
	}
	if env.DeviceID != "" {
		cfg.DeviceID = env.DeviceID
	}
	cfg.Token = firstToken(cfg.Token)
	return cfg, nil
}

// Validate checks that cfg can be used to provision a shell.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("cloud host is not set")
	}
	if c.Token == "" {
		return errors.New("API token is not set (MIST_APITOKEN)")
	}
	if err := validateID("site id", c.SiteID); err != nil {
		return err
	}
	return validateID("device id", c.DeviceID)
}

func validateID(what, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", what, id, err)
	}
	if parsed == uuid.Nil {
		return fmt.Errorf("%s is not set", what)
	}
	return nil
}

// MaskedToken shows only the ends of the token.
func (c Config) MaskedToken() string {
	if len(c.Token) <= 12 {
		return strings.Repeat("*", len(c.Token))
	}
	return c.Token[:6] + "..." + c.Token[len(c.Token)-6:]
}

// firstToken keeps the first entry of a comma-separated token list.
func firstToken(s string) string {
	first, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(first)
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
