package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/xpboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.XPCooldownMS, convey.ShouldEqual, 3000)
				convey.So(cfg.CooldownPruneSchedule, convey.ShouldEqual, "@every 1m")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("XPBOARD_ADDR", ":8080")
			_ = os.Setenv("XPBOARD_QUEUE_SIZE", "4096")
			_ = os.Setenv("XPBOARD_WORKER_COUNT", "16")
			_ = os.Setenv("XPBOARD_STORAGE_DRIVER", "memory")
			_ = os.Setenv("XPBOARD_XP_PER_CHAR", "1.5")
			_ = os.Setenv("XPBOARD_ADMIN_JWT_SECRET", "s3cret")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 4096)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.XPPerChar, convey.ShouldEqual, 1.5)
				convey.So(cfg.AdminJWTSecret, convey.ShouldEqual, "s3cret")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 2048
worker_count: 24
dedupe_size: 600000
xp_cooldown_ms: 5000
min_xp_per_message: 2
max_xp_per_message: 50
database_path: /var/lib/xpboard/xp.db
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("XPBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 2048)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 600000)
				convey.So(cfg.XPCooldownMS, convey.ShouldEqual, 5000)
				convey.So(cfg.MinXPPerMessage, convey.ShouldEqual, 2)
				convey.So(cfg.MaxXPPerMessage, convey.ShouldEqual, 50)
				convey.So(cfg.DatabasePath, convey.ShouldEqual, "/var/lib/xpboard/xp.db")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 2048
worker_count: 24
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("XPBOARD_CONFIG", tmpFile)
			_ = os.Setenv("XPBOARD_ADDR", ":8080")
			_ = os.Setenv("XPBOARD_WORKER_COUNT", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 2048)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("XPBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("XPBOARD_CONFIG", "/non/existent/xpboard.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When an override makes the config invalid", func() {
			_ = os.Setenv("XPBOARD_MIN_XP_PER_MESSAGE", "100")
			_ = os.Setenv("XPBOARD_MAX_XP_PER_MESSAGE", "10")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the storage driver is unknown", func() {
			_ = os.Setenv("XPBOARD_STORAGE_DRIVER", "postgres")

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "unknown storage driver")
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"XPBOARD_CONFIG",
		"XPBOARD_ADDR",
		"XPBOARD_QUEUE_SIZE",
		"XPBOARD_WORKER_COUNT",
		"XPBOARD_STORAGE_DRIVER",
		"XPBOARD_XP_PER_CHAR",
		"XPBOARD_ADMIN_JWT_SECRET",
		"XPBOARD_MIN_XP_PER_MESSAGE",
		"XPBOARD_MAX_XP_PER_MESSAGE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "xpboard-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
