package config

import (
	"errors"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Database names the storage backend.
type Database struct {
	DatabaseURL string `env:"DATABASE_URL"`
	MongoURI    string `env:"MONGO_URI"`
}

// AdminToken holds the settings used to sign and verify admin tokens.
type AdminToken struct {
	AdminSigningKey string        `env:"ADMIN_JWT_SIGNING_KEY"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"faceattend"`
	AdminTokenTTL   time.Duration `env:"ADMIN_TOKEN_TTL" envDefault:"12h" validate:"gt=0"`
}

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`
	HTTPPort string `env:"PORT" envDefault:"5000" validate:"required,numeric"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"loglevel"`

	Database

	S3Bucket          string `env:"S3_BUCKET_NAME" validate:"required"`
	AWSRegion         string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT" validate:"omitempty,url"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID_S3"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY_S3"`

	RekognitionAccessKeyID     string `env:"AWS_ACCESS_KEY_ID_REKOG"`
	RekognitionSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY_REKOG"`
	RekognitionRegion          string `env:"REKOGNITION_REGION"`

	FaceBackend     string        `env:"FACE_BACKEND" envDefault:"rekognition" validate:"oneof=rekognition http skip"`
	FaceServiceURL  string        `env:"FACE_SERVICE_URL" envDefault:"http://localhost:8000" validate:"url"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s" validate:"gt=0"`

	RedisAddr        string `env:"REDIS_ADDR"`
	RateLimitPerMin  int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120" validate:"gte=0"`
	RateLimitBackend string `env:"RATE_LIMIT_BACKEND" envDefault:"memory" validate:"oneof=memory redis"`

	AdminToken
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// AdminAuthEnabled reports whether admin routes require a bearer token.
func (t AdminToken) AdminAuthEnabled() bool {
	return t.AdminSigningKey != ""
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("unable to load .env file: %v", err)
	}
	return Parse()
}

// Parse populates the full server configuration from the process
// environment only.
func Parse() (App, error) {
	var cfg App
	if err := env.Parse(&cfg); err != nil {
		return App{}, err
	}
	cfg.Database.resolve()
	if cfg.RekognitionRegion == "" {
		cfg.RekognitionRegion = cfg.AWSRegion
	}
	if err := validate(cfg); err != nil {
		return App{}, err
	}
	if err := cfg.Database.check(); err != nil {
		return App{}, err
	}
	if cfg.RateLimitBackend == "redis" && cfg.RateLimitPerMin > 0 && cfg.RedisAddr == "" {
		return App{}, errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
	}
	return cfg, nil
}

// ParseDatabase reads only the storage settings.
func ParseDatabase() (Database, error) {
	var db Database
	if err := env.Parse(&db); err != nil {
		return Database{}, err
	}
	db.resolve()
	if err := db.check(); err != nil {
		return Database{}, err
	}
	return db, nil
}

// ParseAdminToken reads only the admin token settings.
func ParseAdminToken() (AdminToken, error) {
	var tok AdminToken
	if err := env.Parse(&tok); err != nil {
		return AdminToken{}, err
	}
	if err := validate(tok); err != nil {
		return AdminToken{}, err
	}
	return tok, nil
}

func (d *Database) resolve() {
	if d.DatabaseURL == "" {
		d.DatabaseURL = d.MongoURI
	}
}

func (d Database) check() error {
	if d.DatabaseURL == "" {
		return errors.New("DATABASE_URL (or MONGO_URI) is required")
	}
	return nil
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	return allowedLogLevels[fieldLevel.Field().String()]
}

func validate(cfg any) error {
	validate := validator.New()
	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}
	return validate.Struct(cfg)
}
