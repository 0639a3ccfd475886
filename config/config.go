/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One place where environment variables become typed settings. A .env
  file is loaded when present so local development needs no exported
  shell state; real environments just set the variables.

OVERRIDABLE POLICY:
  Tier thresholds and tax rates track regulation, not code. They default
  to the current values and can be overridden per deployment without a
  rebuild.

SEE ALSO:
  - procure/tier.go, procure/tax.go: The policies these values feed
*/
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
)

// Config is the full runtime configuration.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string

	Tiers procure.TierPolicy
	Taxes procure.TaxPolicy

	BackupDir      string
	BackupInterval time.Duration
}

// Load reads configuration from the environment, applying defaults for
// anything unset. A missing .env file is not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	tiers := procure.DefaultTierPolicy()
	tiers.Tier1Max = getDecimal("TIER1_MAX", tiers.Tier1Max)
	tiers.Tier2Max = getDecimal("TIER2_MAX", tiers.Tier2Max)

	taxes := procure.DefaultTaxPolicy()
	taxes.VATRate = getDecimal("VAT_RATE", taxes.VATRate)
	taxes.GoodsMinBase = getDecimal("GOODS_TAX_MIN_BASE", taxes.GoodsMinBase)

	return Config{
		Port:     getEnv("PORT", "8080"),
		DBPath:   getEnv("DB_PATH", "./data/procure.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Tiers: tiers,
		Taxes: taxes,

		BackupDir:      getEnv("BACKUP_DIR", ""),
		BackupInterval: getDuration("BACKUP_INTERVAL", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Printf("invalid %s=%q, keeping default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid %s=%q, keeping default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
