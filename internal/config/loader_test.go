package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/wearsense/internal/config"
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
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.InferenceQueueSize, convey.ShouldEqual, 256)
				convey.So(cfg.RetentionMaxFiles, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("WEARSENSE_ADDR", ":8080")
			_ = os.Setenv("WEARSENSE_INFERENCE_WORKERS", "16")
			_ = os.Setenv("WEARSENSE_INFERENCE_TIMEOUT_MS", "1500")
			_ = os.Setenv("WEARSENSE_RETENTION_SCOPE", "session")
			_ = os.Setenv("WEARSENSE_COMFORT_REQUIRES_REGISTERED_SECRET", "false")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.InferenceWorkers, convey.ShouldEqual, 16)
				convey.So(cfg.InferenceTimeoutMS, convey.ShouldEqual, 1500)
				convey.So(cfg.RetentionScope, convey.ShouldEqual, config.ScopeSession)
				convey.So(cfg.ComfortRequiresRegisteredSecret, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
storage_driver: sqlite
storage_dsn: /tmp/wearsense-test.db
retention_max_files: 20
retention_batch: 3
detection_url: http://detector:8000/detect
log_format: json
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("WEARSENSE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.StorageDSN, convey.ShouldEqual, "/tmp/wearsense-test.db")
				convey.So(cfg.RetentionMaxFiles, convey.ShouldEqual, 20)
				convey.So(cfg.RetentionBatch, convey.ShouldEqual, 3)
				convey.So(cfg.DetectionURL, convey.ShouldEqual, "http://detector:8000/detect")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.InferenceQueueSize, convey.ShouldEqual, 256) // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
inference_workers: 24
retention_batch: 2
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("WEARSENSE_CONFIG", tmpFile)
			_ = os.Setenv("WEARSENSE_ADDR", ":8080")
			_ = os.Setenv("WEARSENSE_INFERENCE_WORKERS", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")        // env
				convey.So(cfg.InferenceWorkers, convey.ShouldEqual, 32) // env
				convey.So(cfg.RetentionBatch, convey.ShouldEqual, 2)    // file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("WEARSENSE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("WEARSENSE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML file empties addr", func() {
			tmpFile := createTempConfigFile("addr: \"\"\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("WEARSENSE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("WEARSENSE_INFERENCE_WORKERS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with zero workers", func() {
			_ = os.Setenv("WEARSENSE_INFERENCE_WORKERS", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"WEARSENSE_CONFIG",
		"WEARSENSE_ADDR",
		"WEARSENSE_INFERENCE_WORKERS",
		"WEARSENSE_INFERENCE_TIMEOUT_MS",
		"WEARSENSE_RETENTION_SCOPE",
		"WEARSENSE_COMFORT_REQUIRES_REGISTERED_SECRET",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "wearsense-config-*.yaml")
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
