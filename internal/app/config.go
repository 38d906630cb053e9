package app

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete simulator configuration, loadable from
// environment variables (PROMO_ prefix), flags, or YAML config files.
type Config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (PROMO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	BasketFile  string `default:"-" usage:"Basket JSON file, '-' for stdin" flag:"basket"`
	UserID      string `default:"" usage:"User to evaluate per-user caps against (empty for anonymous)" flag:"user"`
	Seed        bool   `default:"false" usage:"Insert demo catalogue, offers, and vouchers before the pass" flag:"seed"`
	Record      bool   `default:"false" usage:"Record the settlement as completed usage (simulates checkout)" flag:"record"`
}

// LoadConfig loads configuration from flags, environment variables, and
// YAML config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PROMO",
		Files:     []string{"config.yaml", "/etc/promo/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PROMO_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}
