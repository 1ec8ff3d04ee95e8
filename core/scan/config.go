package scan

import "time"

// Config holds the sync engine settings.
type Config struct {
	// DataDir holds the snapshot, the staging log and the lock file.
	DataDir string `mapstructure:"data_dir" default:"data"`
	// CatalogFile is the snapshot file name inside DataDir.
	CatalogFile string `mapstructure:"catalog_file" default:"marketplace_data.json"`
	// StagingFile is the staging log file name inside DataDir.
	StagingFile string `mapstructure:"staging_file" default:"marketplace_staging.jsonl"`
	// ChunkSize bounds concurrent probes.
	ChunkSize int `mapstructure:"chunk_size" default:"100"`
	// BatchSize is the number of identifiers merged as one unit.
	BatchSize int `mapstructure:"batch_size" default:"2000"`
	// WindowSize is the span of an incremental update.
	WindowSize int64 `mapstructure:"window_size" default:"30000"`
	// DiscoveryStart is the first identifier sampled by discovery.
	DiscoveryStart int64 `mapstructure:"discovery_start" default:"1"`
	// DiscoveryStep is the discovery sampling stride.
	DiscoveryStep int64 `mapstructure:"discovery_step" default:"10"`
	// DiscoveryCeiling is the last identifier discovery may sample.
	DiscoveryCeiling int64 `mapstructure:"discovery_ceiling" default:"1000000"`
	// EmptyRunLimit ends discovery sampling after this many empty samples in a row.
	EmptyRunLimit int `mapstructure:"empty_run_limit" default:"200"`
	// RefineMargin widens discovered ranges on both sides.
	RefineMargin int64 `mapstructure:"refine_margin" default:"20"`
	// LowStockThreshold selects records for refresh (stock below it).
	LowStockThreshold int `mapstructure:"low_stock_threshold" default:"2"`
	// Interval runs an incremental update and a refresh periodically while
	// serving. 0 disables it.
	Interval time.Duration `mapstructure:"interval" default:"0s"`
}

// DiscoverOptions derives discovery options from the configuration.
func (c Config) DiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		Start:         c.DiscoveryStart,
		Ceiling:       c.DiscoveryCeiling,
		Step:          c.DiscoveryStep,
		EmptyRunLimit: c.EmptyRunLimit,
		Margin:        c.RefineMargin,
		BatchSize:     c.BatchSize,
	}
}
