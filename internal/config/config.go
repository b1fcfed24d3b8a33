package config

import (
	"runtime"
	"time"
)

type Config struct {
	Exec  ExecConfig
	Cache CacheConfig
	REPL  REPLConfig
}

type ExecConfig struct {
	Workers      int           // worker pool size for stage execution
	WorkerExpiry time.Duration // idle goroutine expiry for the ants pool
	PreAlloc     bool          // pre-allocate the pool's task queue
}

type CacheConfig struct {
	Capacity int // max resident cache entries, 0 = unbounded
}

type REPLConfig struct {
	HistoryFile string
	PrintLimit  int // max rows printed per query result
}

func Default() *Config {
	return &Config{
		Exec: ExecConfig{
			Workers:      runtime.NumCPU(),
			WorkerExpiry: time.Second,
			PreAlloc:     false,
		},
		Cache: CacheConfig{
			Capacity: 0, // analytic datasets are bounded; keep everything
		},
		REPL: REPLConfig{
			HistoryFile: ".triq_history",
			PrintLimit:  2000,
		},
	}
}
