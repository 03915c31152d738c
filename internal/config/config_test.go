package config_test

import (
	"errors"
	"testing"

	"github.com/okian/globepins/internal/adapters/checkpoint"
	"github.com/okian/globepins/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Collection, convey.ShouldEqual, "all_cities")
			convey.So(cfg.BatchSize, convey.ShouldEqual, 200)
			convey.So(cfg.InterBatchDelay().Seconds(), convey.ShouldEqual, 1)
			convey.So(cfg.RetryAttempts, convey.ShouldEqual, 5)
			convey.So(cfg.SearchLimit, convey.ShouldEqual, 10)
			convey.So(cfg.SearchDebounce().Milliseconds(), convey.ShouldEqual, 250)
			convey.So(cfg.AdminPaths, convey.ShouldContain, "/admin")
			convey.So(cfg.CheckpointKey, convey.ShouldEqual, checkpoint.DefaultKey)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsRefresh().Seconds(), convey.ShouldEqual, 10)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"unknown store":          func(c *config.Config) { c.Store = "sqlite" },
		"postgres without dsn":   func(c *config.Config) { c.Store = config.StorePostgres },
		"unknown checkpoint":     func(c *config.Config) { c.Checkpoint = "s3" },
		"file without path":      func(c *config.Config) { c.CheckpointPath = "" },
		"redis without addr":     func(c *config.Config) { c.Checkpoint = config.CheckpointRedis },
		"batch too large":        func(c *config.Config) { c.BatchSize = 401 },
		"batch zero":             func(c *config.Config) { c.BatchSize = 0 },
		"negative retry base":    func(c *config.Config) { c.RetryBaseMS = -1 },
		"zero search limit":      func(c *config.Config) { c.SearchLimit = 0 },
		"negative debounce":      func(c *config.Config) { c.SearchDebounceMS = -5 },
		"unknown log format":     func(c *config.Config) { c.LogFormat = "xml" },
		"negative metrics pace":  func(c *config.Config) { c.MetricsRefreshMS = -1 },
		"metrics label no value": func(c *config.Config) { c.MetricsLabels = []string{"site"} },
	}
	for name, mutate := range cases {
		cfg := config.New()
		mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
