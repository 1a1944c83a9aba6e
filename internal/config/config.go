package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"shop-payments/internal/domain"
	"shop-payments/internal/gateway"
)

// GatewayCredentials is the per-provider secret material. Never log SecretKey
// in plaintext; use MaskSecret.
type GatewayCredentials struct {
	MerchantID string `envconfig:"MERCHANT_ID"`
	TerminalID string `envconfig:"TERMINAL_ID"`
	SecretKey  string `envconfig:"SECRET_KEY"`
	Sandbox    bool   `envconfig:"SANDBOX" default:"false"`
	Active     bool   `envconfig:"ACTIVE" default:"false"`
}

type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBPort         string `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"DB_NAME" default:"shop"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"./internal/database/migrations"`

	ActiveGateway string `envconfig:"ACTIVE_GATEWAY" default:"zarinpal"`
	CallbackURL   string `envconfig:"PAYMENT_CALLBACK_URL" default:"http://localhost:8080/api/v1/payments/verify"`

	AutoCompleteTick  time.Duration `envconfig:"AUTOCOMPLETE_TICK" default:"60s"`
	AutoCompleteGrace time.Duration `envconfig:"AUTOCOMPLETE_GRACE" default:"168h"`

	AuditSink    string `envconfig:"AUDIT_SINK" default:"log"` // log | postgres | kafka
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	AuditTopic   string `envconfig:"AUDIT_TOPIC" default:"audit-events"`

	ZarinPal GatewayCredentials `envconfig:"ZARINPAL"`
	Sadad    GatewayCredentials `envconfig:"SADAD"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Provider hands the orchestrator the active gateway and its credentials.
// It is the narrow seam between external configuration and payment code.
type Provider struct {
	cfg *Config
}

func NewProvider(cfg *Config) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Active() (domain.Gateway, gateway.Credentials, error) {
	gw := domain.Gateway(strings.ToLower(p.cfg.ActiveGateway))
	if !gw.Valid() {
		return "", gateway.Credentials{}, &domain.ConfigurationError{
			Reason: "unknown active gateway " + p.cfg.ActiveGateway,
		}
	}
	creds, err := p.Credentials(gw)
	return gw, creds, err
}

func (p *Provider) Credentials(gw domain.Gateway) (gateway.Credentials, error) {
	var gc GatewayCredentials
	switch gw {
	case domain.GatewayZarinPal:
		gc = p.cfg.ZarinPal
	case domain.GatewaySadad:
		gc = p.cfg.Sadad
	default:
		return gateway.Credentials{}, &domain.ConfigurationError{Reason: "unknown gateway " + string(gw)}
	}
	return gateway.Credentials{
		MerchantID: gc.MerchantID,
		TerminalID: gc.TerminalID,
		SecretKey:  gc.SecretKey,
		Sandbox:    gc.Sandbox,
		Active:     gc.Active,
	}, nil
}

// MaskSecret keeps a short prefix for operator logs and hides the rest.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
