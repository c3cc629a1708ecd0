package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/lox/cardroom/internal/table"
)

// Config represents the complete server configuration
type Config struct {
	Server  ServerSettings   `hcl:"server,block"`
	Storage *StorageSettings `hcl:"storage,block"`
	NATS    *NATSSettings    `hcl:"nats,block"`
	Tables  []TableConfig    `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address            string   `hcl:"address,optional"`
	Port               int      `hcl:"port,optional"`
	LogLevel           string   `hcl:"log_level,optional"`
	AllowedOrigins     []string `hcl:"allowed_origins,optional"`
	RateLimitPerMinute int      `hcl:"rate_limit_per_minute,optional"`
	JWTSecret          string   `hcl:"jwt_secret,optional"`
}

// StorageSettings selects the persistence backend. An empty PostgresURL
// keeps everything in memory.
type StorageSettings struct {
	PostgresURL string `hcl:"postgres_url,optional"`
}

// NATSSettings enables the event mirror when URL is set.
type NATSSettings struct {
	URL           string `hcl:"url,optional"`
	Token         string `hcl:"token,optional"`
	SubjectPrefix string `hcl:"subject_prefix,optional"`
}

// TableConfig defines a poker table configuration
type TableConfig struct {
	Name                 string `hcl:"name,label"`
	MaxPlayers           int    `hcl:"max_players,optional"`
	SmallBlind           int    `hcl:"small_blind"`
	BigBlind             int    `hcl:"big_blind"`
	Ante                 int    `hcl:"ante,optional"`
	ActionTimeoutSeconds int    `hcl:"action_timeout_seconds,optional"`
	TimeBankSeconds      int    `hcl:"time_bank_seconds,optional"`
	HandPauseSeconds     int    `hcl:"hand_pause_seconds,optional"`
	BuyInMin             int    `hcl:"buy_in_min,optional"`
	BuyInMax             int    `hcl:"buy_in_max,optional"`
	DeckSeed             int64  `hcl:"deck_seed,optional"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	cfg := &Config{
		Tables: []TableConfig{{Name: "main", SmallBlind: 10, BigBlind: 20}},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads server configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.RateLimitPerMinute == 0 {
		c.Server.RateLimitPerMinute = 120
	}
	if c.Storage == nil {
		c.Storage = &StorageSettings{}
	}
	if c.NATS == nil {
		c.NATS = &NATSSettings{}
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "cardroom"
	}

	for i := range c.Tables {
		t := &c.Tables[i]
		if t.MaxPlayers == 0 {
			t.MaxPlayers = 6
		}
		if t.ActionTimeoutSeconds == 0 {
			t.ActionTimeoutSeconds = 30
		}
		if t.TimeBankSeconds == 0 {
			t.TimeBankSeconds = 30
		}
		if t.HandPauseSeconds == 0 {
			t.HandPauseSeconds = 3
		}
		if t.BuyInMin == 0 {
			t.BuyInMin = t.BigBlind * 20 // 20 big blinds minimum
		}
		if t.BuyInMax == 0 {
			t.BuyInMax = t.BigBlind * 100 // 100 big blinds maximum
		}
	}
}

// ApplyEnv overrides secrets from the environment. Each envFile is read with
// godotenv if it exists; real environment variables win over file values.
func (c *Config) ApplyEnv(envFiles ...string) error {
	fileEnv := map[string]string{}
	for _, name := range envFiles {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			continue
		}
		vals, err := godotenv.Read(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for k, v := range vals {
			fileEnv[k] = v
		}
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileEnv[key]
	}

	if v := lookup("POSTGRES_URL"); v != "" {
		c.Storage.PostgresURL = v
	}
	if v := lookup("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := lookup("NATS_TOKEN"); v != "" {
		c.NATS.Token = v
	}
	if v := lookup("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	return nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid rate limit: %d", c.Server.RateLimitPerMinute)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}

	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if seen[t.Name] {
			return fmt.Errorf("table %s: configured twice", t.Name)
		}
		seen[t.Name] = true
		if err := t.EngineConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// EngineConfig converts the block into engine settings. The label is the
// table id.
func (t TableConfig) EngineConfig() table.Config {
	return table.Config{
		ID:            t.Name,
		Name:          t.Name,
		MaxSeats:      t.MaxPlayers,
		SmallBlind:    t.SmallBlind,
		BigBlind:      t.BigBlind,
		Ante:          t.Ante,
		ActionTimeout: time.Duration(t.ActionTimeoutSeconds) * time.Second,
		TimeBank:      time.Duration(t.TimeBankSeconds) * time.Second,
		HandPause:     time.Duration(t.HandPauseSeconds) * time.Second,
		BuyInMin:      t.BuyInMin,
		BuyInMax:      t.BuyInMax,
		DeckSeed:      t.DeckSeed,
	}
}
