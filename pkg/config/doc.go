// Package config loads typed configuration structs from environment variables.
//
// Fields are described with github.com/caarlos0/env tags; a .env file in the
// working directory is read once through github.com/joho/godotenv before the
// first parse.
//
//	type Config struct {
//		Provider string        `env:"BILLING_PROVIDER" envDefault:"stripe"`
//		CacheTTL time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"10m"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Each config type is parsed once per process. Tests that change the
// environment call ResetCache between loads. LoadEnv reads additional dotenv
// files explicitly.
package config
