package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zllovesuki/custbridge/crm"
	"github.com/zllovesuki/custbridge/customer"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	extErrors "github.com/pkg/errors"
)

// Environment is the type for defining the running environment
type Environment string

// define constants
const (
	EnvDevelopment Environment = "Dev"
	EnvProduction  Environment = "Prod"
)

// Backend selects the Store implementation
type Backend string

// define constants
const (
	BackendPostgres Backend = "postgres"
	BackendDynamoDB Backend = "dynamodb"
)

// Target is the binary a Config is validated for
type Target string

// define constants
const (
	TargetAPI    Target = "api"
	TargetWorker Target = "worker"
)

const (
	defaultPort       = "3000"
	defaultCRMTimeout = 10 * time.Second
)

var validate *validator.Validate = validator.New()

// CRM holds the client-credentials and REST endpoints of the external CRM
type CRM struct {
	TokenURL     string `validate:"omitempty,url"`
	ClientID     string `validate:"required_with=TokenURL"`
	ClientSecret string `validate:"required_with=TokenURL"`
	ContactURL   string `validate:"required_with=TokenURL,omitempty,url"`
	QueryURL     string `validate:"required_with=TokenURL,omitempty,url"`
	TokenTTL     time.Duration
	Timeout      time.Duration
}

// Enabled reports whether customers should be mirrored to the CRM
func (c CRM) Enabled() bool {
	return c.TokenURL != ""
}

// Config is everything the API reads from the environment
type Config struct {
	Environment Environment
	Port        string `validate:"required,numeric"`

	Backend        Backend `validate:"oneof=postgres dynamodb"`
	PostgresURI    string  `validate:"required_if=Backend postgres"`
	DynamoTable    string  `validate:"required_if=Backend dynamodb"`
	DynamoRegion   string
	DynamoEndpoint string `validate:"omitempty,url"`

	CRM CRM

	RedisURI      string
	RedisPassword string
	AMQPURI       string
	SentryDSN     string
}

// Environ determines the running environment and the dotfile to load for it
func Environ() (Environment, string) {
	if os.Getenv("API_ENV") == "production" {
		return EnvProduction, ".env.production"
	}
	return EnvDevelopment, ".env.development"
}

// LoadDotFile loads dotFile into the process environment. Variables that are
// already set take precedence.
func LoadDotFile(dotFile string) error {
	if err := godotenv.Load(dotFile); err != nil {
		return extErrors.Wrapf(err, "Cannot load configurations from %s", dotFile)
	}
	return nil
}

// Load reads the configuration from the process environment and validates
// only what target needs
func Load(env Environment, target Target) (*Config, error) {
	return load(env, target, os.Getenv)
}

func load(env Environment, target Target, getenv func(string) string) (*Config, error) {
	crmTTL, err := duration(getenv, "CRM_TOKEN_TTL", crm.DefaultTokenTTL)
	if err != nil {
		return nil, err
	}
	crmTimeout, err := duration(getenv, "CRM_TIMEOUT", defaultCRMTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:    env,
		Port:           withDefault(getenv("PORT"), defaultPort),
		Backend:        Backend(strings.ToLower(withDefault(getenv("STORE_BACKEND"), string(BackendPostgres)))),
		PostgresURI:    getenv("POSTGRES_URI"),
		DynamoTable:    withDefault(getenv("DYNAMODB_TABLE"), customer.DefaultDynamoTable),
		DynamoRegion:   getenv("AWS_REGION"),
		DynamoEndpoint: getenv("DYNAMODB_ENDPOINT"),
		CRM: CRM{
			TokenURL:     getenv("CRM_TOKEN_URL"),
			ClientID:     getenv("CRM_CLIENT_ID"),
			ClientSecret: getenv("CRM_CLIENT_SECRET"),
			ContactURL:   getenv("CRM_CONTACT_URL"),
			QueryURL:     getenv("CRM_QUERY_URL"),
			TokenTTL:     crmTTL,
			Timeout:      crmTimeout,
		},
		RedisURI:      getenv("REDIS_URI"),
		RedisPassword: getenv("REDIS_PW"),
		AMQPURI:       getenv("AMQP_URI"),
		SentryDSN:     getenv("SENTRY_DSN"),
	}

	switch target {
	case TargetAPI:
		err = cfg.Validate()
	case TargetWorker:
		err = cfg.ValidateWorker()
	default:
		err = fmt.Errorf("unknown target %q", target)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateWorker checks the options the audit worker uses. The store backend is not needed.
func (c *Config) ValidateWorker() error {
	if c == nil {
		return fmt.Errorf("nil Config is invalid")
	}
	if err := validate.Var(c.AMQPURI, "required"); err != nil {
		return extErrors.Wrap(err, "Invalid configuration: AMQP_URI is required")
	}
	return nil
}

// Validate checks that every required option for the selected backend and integrations is present
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil Config is invalid")
	}
	if err := validate.Struct(c); err != nil {
		return extErrors.Wrap(err, "Invalid configuration")
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, extErrors.Wrapf(err, "Invalid %s", key)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
