package config

import (
	"errors"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables. The first underscore
// after it separates the section: INSURANCE_AUTH_SIGNING_KEY is auth.signing_key.
const EnvPrefix = "INSURANCE_"

const masked = "********"

type Config struct {
	Server  Server  `koanf:"server" json:"server"`
	Store   Store   `koanf:"store" json:"store"`
	Auth    Auth    `koanf:"auth" json:"auth"`
	Redis   Redis   `koanf:"redis" json:"redis"`
	Numbers Numbers `koanf:"numbers" json:"numbers"`
	Log     Log     `koanf:"log" json:"log"`
}

type Server struct {
	Address     string `koanf:"address" json:"address"`
	CORSOrigins string `koanf:"cors_origins" json:"cors_origins"`
}

type Store struct {
	Driver string `koanf:"driver" json:"driver"`
	DSN    string `koanf:"dsn" json:"dsn"`
	Key    string `koanf:"key" json:"key"`
}

type Auth struct {
	SigningKey       string        `koanf:"signing_key" json:"signing_key"`
	Algorithm        string        `koanf:"algorithm" json:"algorithm"`
	BcryptCost       int           `koanf:"bcrypt_cost" json:"bcrypt_cost"`
	TokenTTL         time.Duration `koanf:"token_ttl" json:"token_ttl"`
	Issuer           string        `koanf:"issuer" json:"issuer"`
	MaxLoginAttempts int           `koanf:"max_login_attempts" json:"max_login_attempts"`
	LoginCooldown    time.Duration `koanf:"login_cooldown" json:"login_cooldown"`
}

type Redis struct {
	Address  string `koanf:"address" json:"address"`
	Password string `koanf:"password" json:"password"`
	DB       int    `koanf:"db" json:"db"`
}

type Numbers struct {
	Attempts int `koanf:"attempts" json:"attempts"`
}

type Log struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// Defaults are loaded before any other source
func Defaults() map[string]any {
	return map[string]any{
		"server.address":          ":5000",
		"server.cors_origins":     "*",
		"store.driver":            "postgres",
		"auth.algorithm":          "HS256",
		"auth.bcrypt_cost":        12,
		"auth.token_ttl":          "24h",
		"auth.issuer":             "insurance",
		"auth.max_login_attempts": 5,
		"auth.login_cooldown":     "15m",
		"redis.db":                0,
		"numbers.attempts":        10,
		"log.level":               "info",
		"log.format":              "json",
	}
}

// Load merges defaults, the optional YAML file at path, INSURANCE_ env
// vars and changed flags, in that order of precedence. The result is
// validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Store),
		validation.Field(&c.Auth),
		validation.Field(&c.Numbers),
		validation.Field(&c.Log),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
	)
}

func (s Store) Validate() error {
	keyRules := []validation.Rule{}
	if s.Driver == "postgres" {
		keyRules = append(keyRules, validation.Required.Error("store.key is required for postgres"))
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required, validation.In("postgres", "sqlite")),
		validation.Field(&s.DSN, validation.Required.Error("store.dsn is required")),
		validation.Field(&s.Key, keyRules...),
	)
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required.Error("auth.signing_key is required")),
		validation.Field(&a.Algorithm, validation.Required, validation.In("HS256").Error("only HS256 is supported")),
		validation.Field(&a.BcryptCost, validation.Min(4), validation.Max(31)),
		validation.Field(&a.TokenTTL, validation.Required),
		validation.Field(&a.MaxLoginAttempts, validation.Min(0)),
	)
}

func (n Numbers) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Attempts, validation.Required, validation.Min(1)),
	)
}

func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "console")),
	)
}

// Masked returns a copy safe to print
func (c Config) Masked() Config {
	out := c
	out.Auth.SigningKey = mask(c.Auth.SigningKey)
	out.Store.Key = mask(c.Store.Key)
	out.Redis.Password = mask(c.Redis.Password)
	return out
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return masked
}
