package cmd

import (
	"io"
	"time"
)

// CacheCmd groups the cache commands
type CacheCmd struct {
	Stats CacheStatsCmd `cmd:"" help:"Count cached books and how many are fresh"`
}

// CacheStatsCmd prints the cache freshness summary
type CacheStatsCmd struct{}

func (c *CacheStatsCmd) Run(rt *Runtime) error {
	app, err := rt.App()
	if err != nil {
		return err
	}

	stats, err := app.Cache.Stats(rt.ctx, time.Now())
	if err != nil {
		return err
	}
	return rt.render(stats, func(w io.Writer) { writeCacheStats(w, stats) })
}
