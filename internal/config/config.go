// Package config loads the Transbank environment, per-service credentials and
// defaults, and the return-flow server settings.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML/JSON/TOML config file, .env files and TRANSBANK_* environment
// variables. Nested keys map to variables by upper-casing and replacing dots
// with underscores, so webpay.commerce_code is TRANSBANK_WEBPAY_COMMERCE_CODE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	tbcontext "github.com/yourorg/transbank-api/internal/context"
)

const envPrefix = "TRANSBANK"

// Services lists the Transbank services that accept credentials and defaults.
var Services = []string{"webpay", "onepay"}

// credentialKeys maps config keys to the credential names the clients read.
var credentialKeys = map[string]map[string]string{
	"webpay": {"commerce_code": "commerceCode", "private_key": "privateKey", "public_cert": "publicCert"},
	"onepay": {"api_key": "apiKey", "shared_secret": "sharedSecret", "app_key": "appKey"},
}

// defaultKeys maps config keys to the transaction attributes they default.
var defaultKeys = map[string]map[string]string{
	"webpay": {"return_url": "returnUrl", "final_url": "finalUrl", "response_url": "responseUrl"},
	"onepay": {"callback_url": "callbackUrl", "channel": "channel"},
}

var (
	// ErrCredentialInvalid is matched by every CredentialInvalidError.
	ErrCredentialInvalid = errors.New("invalid credential")
	// ErrInvalidService is matched by every InvalidServiceError.
	ErrInvalidService = errors.New("invalid service")
)

// CredentialInvalidError reports a credential that is not a string.
type CredentialInvalidError struct {
	Service    string
	Credential string
	Kind       string
}

func (e *CredentialInvalidError) Error() string {
	return fmt.Sprintf("the credential %q for %s has to be a string, %s passed", e.Credential, e.Service, e.Kind)
}

func (e *CredentialInvalidError) Is(target error) bool {
	return target == ErrCredentialInvalid
}

// InvalidServiceError reports a service name that is not one of Services.
type InvalidServiceError struct {
	Service string
}

func (e *InvalidServiceError) Error() string {
	return fmt.Sprintf("%s: %q is not a Transbank service", ErrInvalidService, e.Service)
}

func (e *InvalidServiceError) Is(target error) bool {
	return target == ErrInvalidService
}

// CheckService returns an InvalidServiceError unless service is known.
func CheckService(service string) error {
	for _, s := range Services {
		if s == service {
			return nil
		}
	}
	return &InvalidServiceError{Service: service}
}

// Credentials validates raw credentials of service. Every value must be a
// string; nil values are skipped.
func Credentials(service string, raw map[string]any) (tbcontext.Credentials, error) {
	if err := CheckService(service); err != nil {
		return nil, err
	}
	creds := make(tbcontext.Credentials, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return nil, &CredentialInvalidError{Service: service, Credential: key, Kind: fmt.Sprintf("%T", value)}
		}
		creds[key] = s
	}
	return creds, nil
}

// Server holds the settings of the return-flow HTTP server.
type Server struct {
	Addr      string
	RedisAddr string
	TokenTTL  time.Duration
	BaseURL   string
}

// Config is the loaded configuration.
type Config struct {
	Environment tbcontext.Environment
	Credentials map[string]tbcontext.Credentials
	Defaults    map[string]map[string]any
	Server      Server
	LogLevel    string
}

// Load reads configFile (skipped when empty) and the given .env files, then
// the environment. Missing .env files are ignored; a missing config file is
// an error.
func Load(configFile string, dotenvFiles ...string) (*Config, error) {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", string(tbcontext.Integration))
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.token_ttl", time.Hour)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("redis.addr", "")
	v.SetDefault("log.level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Environment: tbcontext.ParseEnvironment(v.GetString("environment")),
		Credentials: make(map[string]tbcontext.Credentials, len(Services)),
		Defaults:    make(map[string]map[string]any, len(Services)),
		Server: Server{
			Addr:      v.GetString("server.addr"),
			RedisAddr: v.GetString("redis.addr"),
			TokenTTL:  v.GetDuration("server.token_ttl"),
			BaseURL:   strings.TrimRight(v.GetString("server.base_url"), "/"),
		},
		LogLevel: v.GetString("log.level"),
	}

	for _, service := range Services {
		raw := make(map[string]any)
		for key, name := range credentialKeys[service] {
			if value := v.Get(service + "." + key); value != nil && value != "" {
				raw[name] = value
			}
		}
		creds, err := Credentials(service, raw)
		if err != nil {
			return nil, err
		}
		cfg.Credentials[service] = creds

		defaults := make(map[string]any)
		for key, name := range defaultKeys[service] {
			if value := v.GetString(service + "." + key); value != "" {
				defaults[name] = value
			}
		}
		cfg.Defaults[service] = defaults
	}
	return cfg, nil
}
