package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/calibrate/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CALIBRATE_ADDR", ":8080")
			_ = os.Setenv("CALIBRATE_ROUNDS", "5")
			_ = os.Setenv("CALIBRATE_SELECTOR_SEED", "42")
			_ = os.Setenv("CALIBRATE_SESSION_TTL", "90s")
			_ = os.Setenv("CALIBRATE_STORE__DRIVER", "redis")
			_ = os.Setenv("CALIBRATE_STORE__REDIS_ADDR", "cache:6380")
			_ = os.Setenv("CALIBRATE_STORE__REDIS_DB", "2")
			_ = os.Setenv("CALIBRATE_PERSISTENCE__ASYNC", "true")
			_ = os.Setenv("CALIBRATE_PERSISTENCE__WORKERS", "6")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Rounds, convey.ShouldEqual, 5)
				convey.So(cfg.SelectorSeed, convey.ShouldEqual, int64(42))
				convey.So(cfg.SessionTTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverRedis)
				convey.So(cfg.Store.RedisAddr, convey.ShouldEqual, "cache:6380")
				convey.So(cfg.Store.RedisDB, convey.ShouldEqual, 2)
				convey.So(cfg.Store.RedisPrefix, convey.ShouldEqual, "calibrate")
				convey.So(cfg.Persistence.Async, convey.ShouldBeTrue)
				convey.So(cfg.Persistence.Workers, convey.ShouldEqual, 6)
				convey.So(cfg.Persistence.QueueSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# local development
addr: ":9090"
log_format: json
rounds: 4
store:
  driver: postgres
  postgres_dsn: "postgres://calibrate@localhost/calibrate?sslmode=disable"
persistence:
  async: true
  queue_size: 500
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALIBRATE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge the file with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Rounds, convey.ShouldEqual, 4)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.Store.PostgresDSN, convey.ShouldContainSubstring, "sslmode=disable")
				convey.So(cfg.Persistence.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.Persistence.MaxRetries, convey.ShouldEqual, 3)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nrounds: 4\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALIBRATE_CONFIG", tmpFile)
			_ = os.Setenv("CALIBRATE_ROUNDS", "2")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Rounds, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALIBRATE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CALIBRATE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CALIBRATE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CALIBRATE_ROUNDS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CALIBRATE_CONFIG",
		"CALIBRATE_ADDR",
		"CALIBRATE_ROUNDS",
		"CALIBRATE_SELECTOR_SEED",
		"CALIBRATE_SESSION_TTL",
		"CALIBRATE_STORE__DRIVER",
		"CALIBRATE_STORE__REDIS_ADDR",
		"CALIBRATE_STORE__REDIS_DB",
		"CALIBRATE_PERSISTENCE__ASYNC",
		"CALIBRATE_PERSISTENCE__WORKERS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "calibrate-config-*.yaml")
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
