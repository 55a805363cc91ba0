package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          string `env:"PORT" envDefault:"5000"`
	MongoDBURI    string `env:"MONGODB_URI,required"`
	MongoDBName   string `env:"MONGODB_DATABASE_NAME,required"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`

	// Image hosting collaborator. Uploads are passed through untouched
	// when no URL is configured.
	ImageUploadURL string `env:"IMAGE_UPLOAD_URL"`
	ImageUploadKey string `env:"IMAGE_UPLOAD_KEY"`

	GuestSweepInterval time.Duration `env:"GUEST_SWEEP_INTERVAL" envDefault:"1h"`
}

// Load reads .env if present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
