package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionCookie string        `env:"SESSION_COOKIE" envDefault:"chirp_session"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"336h"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`

	PostRateLimit  int           `env:"POST_RATE_LIMIT" envDefault:"30"`
	PostRateWindow time.Duration `env:"POST_RATE_WINDOW" envDefault:"60m"`

	AttachmentDir     string `env:"ATTACHMENT_DIR" envDefault:"./data/attachments"`
	AttachmentBaseURL string `env:"ATTACHMENT_BASE_URL" envDefault:"/attachments"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"chirp"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	NotifyChannel string `env:"NOTIFY_CHANNEL" envDefault:"posts:created"`

	WebhookURL   string `env:"WEBHOOK_URL"`
	WebhookToken string `env:"WEBHOOK_TOKEN"`

	HTTPRPS   float64 `env:"HTTP_RPS" envDefault:"20"`
	HTTPBurst int     `env:"HTTP_BURST" envDefault:"40"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
