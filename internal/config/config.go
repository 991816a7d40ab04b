package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer      string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string   `mapstructure:"AUTH_AUDIENCE"`
	DefaultHospital string   `mapstructure:"DEFAULT_HOSPITAL"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`

	// Nominal fallback fees, charged when a catalog service has no usable
	// rate in any column. Business policy values set by the billing
	// department, not derived from other data.
	NominalRateLab      float64 `mapstructure:"NOMINAL_RATE_LAB"`
	NominalRateClinical float64 `mapstructure:"NOMINAL_RATE_CLINICAL"`
	NominalRateDefault  float64 `mapstructure:"NOMINAL_RATE_DEFAULT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_HOSPITAL", "hope")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("NOMINAL_RATE_LAB", 100)
	v.SetDefault("NOMINAL_RATE_CLINICAL", 200)
	v.SetDefault("NOMINAL_RATE_DEFAULT", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("DEFAULT_HOSPITAL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("NOMINAL_RATE_LAB")
	v.BindEnv("NOMINAL_RATE_CLINICAL")
	v.BindEnv("NOMINAL_RATE_DEFAULT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_ISSUER must be set so that real JWT authentication is enforced, and
// the nominal fallback fees must be positive — a zero nominal rate would let
// the resolver bill a service at ₹0.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" {
		return fmt.Errorf(
			"AUTH_ISSUER must be set when ENV=%q; refusing to start without authentication configuration", c.Env)
	}
	if c.NominalRateLab <= 0 || c.NominalRateClinical <= 0 || c.NominalRateDefault <= 0 {
		return fmt.Errorf("nominal fallback rates must be positive (lab=%v clinical=%v default=%v)",
			c.NominalRateLab, c.NominalRateClinical, c.NominalRateDefault)
	}
	return nil
}
