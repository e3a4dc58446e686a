package config

import (
	"flag"

	"github.com/caarlos0/env/v6"
)

type ServerConfig struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	BaseURL     string `env:"BASE_URL"`
	DatabaseDSN string `env:"DATABASE_URI"`
	UploadDir   string `env:"UPLOAD_DIR" envDefault:"uploads"`
	PrintPrice  int    `env:"PRINT_PRICE" envDefault:"100"`

	StorageEndpoint  string `env:"STORAGE_ENDPOINT"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY"`
	StorageBucket    string `env:"STORAGE_BUCKET"`
	StorageUseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"true"`

	MpesaBaseURL   string `env:"MPESA_BASE_URL" envDefault:"https://sandbox.safaricom.co.ke"`
	MpesaKey       string `env:"MPESA_KEY"`
	MpesaSecret    string `env:"MPESA_SECRET"`
	MpesaShortcode string `env:"MPESA_SHORTCODE"`
	MpesaPasskey   string `env:"MPESA_PASSKEY"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASS"`
	EmailFrom    string `env:"EMAIL_FROM"`

	AdminUser         string `env:"ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
}

func NewConfig() (*ServerConfig, error) {
	var params ServerConfig
	err := env.Parse(&params)
	if err != nil {
		return nil, err
	}

	var commandLineParams ServerConfig

	flag.StringVar(&commandLineParams.RunAddress, "a", "localhost:5000", "Address to listen on")
	flag.StringVar(&commandLineParams.BaseURL, "b", "http://localhost:5000", "Public base URL for payment callbacks")
	flag.StringVar(&commandLineParams.DatabaseDSN, "d", "postgres://postgres@localhost:5432/printdesk?sslmode=disable", "Database DSN")
	flag.Parse()

	if params.RunAddress == "" {
		params.RunAddress = commandLineParams.RunAddress
	}
	if params.BaseURL == "" {
		params.BaseURL = commandLineParams.BaseURL
	}
	if params.DatabaseDSN == "" {
		params.DatabaseDSN = commandLineParams.DatabaseDSN
	}

	return &params, nil
}
