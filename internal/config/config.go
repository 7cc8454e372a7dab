package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	FirebaseProjectID     string `env:"FIREBASE_PROJECT_ID"`
	StorageBucket         string `env:"STORAGE_BUCKET"`
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	SendTimeout       time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
	SendRatePerSecond float64       `env:"SEND_RATE_PER_SECOND" envDefault:"2"`
	SendRateBurst     int           `env:"SEND_RATE_BURST" envDefault:"5"`
	RealtimeBuffer    int           `env:"REALTIME_BUFFER" envDefault:"64"`
	MaxImageBytes     int64         `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`

	CORSAllowedHostSuffix string `env:"CORS_ALLOWED_HOST_SUFFIX" envDefault:"vercel.app"`

	Pricing Pricing `envPrefix:"PRICING_"`
}

// Pricing is the single place message prices and the earnings split are defined.
type Pricing struct {
	TextCredits         int64 `env:"TEXT_CREDITS" envDefault:"5"`
	ImageCredits        int64 `env:"IMAGE_CREDITS" envDefault:"10"`
	CreditValueCents    int64 `env:"CREDIT_VALUE_CENTS" envDefault:"10"`
	CreatorSharePercent int64 `env:"CREATOR_SHARE_PERCENT" envDefault:"70"`
}

func (p Pricing) Validate() error {
	if p.TextCredits < 0 || p.ImageCredits < 0 {
		return errors.New("message credit rates must not be negative")
	}
	if p.CreditValueCents < 0 {
		return errors.New("credit value must not be negative")
	}
	if p.CreatorSharePercent < 0 || p.CreatorSharePercent > 100 {
		return errors.New("creator share must be between 0 and 100")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
