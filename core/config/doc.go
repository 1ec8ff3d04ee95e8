// Package config loads the application configuration.
//
// Values come from environment variables, optionally seeded from a .env file
// via godotenv, and are bound with Viper. Defaults live next to each field in
// a `default` struct tag and are registered by reflection, so every key can be
// overridden by its upper-cased env name (sync.batch_size -> SYNC_BATCH_SIZE).
//
// # Configuration Structure
//
//   - Server: HTTP port, API key, shutdown timeout
//   - Log: level and format
//   - Remote: lookup endpoint, timeouts, rate limit and retry policy
//   - Sync: data files, batch sizes, discovery policy, periodic interval
//   - Storage: S3/MinIO snapshot mirror
//   - Database: run history (SQLite or MySQL)
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.BatchSize)
package config
