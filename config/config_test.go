package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/skill-ladder/ladder-hub/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading defaults with the memory driver", func() {
			_ = os.Setenv("LADDER_DATABASE_DRIVER", "memory")

			cfg, err := config.Load("")

			convey.Convey("Then the documented defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Database.Driver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.HTTP.Port, convey.ShouldEqual, 8080)
				convey.So(cfg.Ladder.ReputationPerLevel, convey.ShouldEqual, 100)
				convey.So(cfg.Ladder.SkillsPerLevel, convey.ShouldEqual, 2)
				convey.So(cfg.Ladder.DefaultRequiredSessions, convey.ShouldEqual, 5)
				convey.So(cfg.Ladder.MaxFeedbackRating, convey.ShouldEqual, 10)
				convey.So(cfg.Matching.SuggestionLimit, convey.ShouldEqual, 10)
				convey.So(cfg.Matching.EnforceTransitions, convey.ShouldBeTrue)
				convey.So(cfg.Redis.Enabled, convey.ShouldBeFalse)
				convey.So(cfg.Redis.SuggestionTTL, convey.ShouldEqual, 5*time.Minute)
			})
		})

		convey.Convey("When loading with environment variables", func() {
			_ = os.Setenv("LADDER_DATABASE_DRIVER", "postgres")
			_ = os.Setenv("LADDER_DATABASE_URL", "postgres://ladder@localhost/ladder")
			_ = os.Setenv("LADDER_DATABASE_MAX_CONNS", "7")
			_ = os.Setenv("LADDER_MATCHING_SUGGESTION_LIMIT", "5")
			_ = os.Setenv("LADDER_MATCHING_ENFORCE_TRANSITIONS", "false")
			_ = os.Setenv("LADDER_REDIS_SUGGESTION_TTL", "90s")
			_ = os.Setenv("LADDER_OBSERVABILITY_LOG_LEVEL", "debug")

			cfg, err := config.Load("")

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Database.URL, convey.ShouldEqual, "postgres://ladder@localhost/ladder")
				convey.So(cfg.Database.MaxConns, convey.ShouldEqual, int32(7))
				convey.So(cfg.Matching.SuggestionLimit, convey.ShouldEqual, 5)
				convey.So(cfg.Matching.EnforceTransitions, convey.ShouldBeFalse)
				convey.So(cfg.Redis.SuggestionTTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.Observability.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Ladder.ReputationPerLevel, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading a YAML file", func() {
			path := writeConfigFile(t, `
app:
  env: staging
database:
  driver: memory
  fixtures: ./fixtures.yaml
ladder:
  reputation_per_level: 50
  skills_per_level: 3
redis:
  enabled: true
  addr: cache:6379
`)
			_ = os.Setenv("LADDER_LADDER_SKILLS_PER_LEVEL", "4")

			cfg, err := config.Load(path)

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.App.Environment, convey.ShouldEqual, config.EnvStaging)
				convey.So(cfg.Database.Fixtures, convey.ShouldEqual, "./fixtures.yaml")
				convey.So(cfg.Ladder.ReputationPerLevel, convey.ShouldEqual, 50)
				convey.So(cfg.Ladder.SkillsPerLevel, convey.ShouldEqual, 4)
				convey.So(cfg.Ladder.MaxFeedbackRating, convey.ShouldEqual, 10)
				convey.So(cfg.Redis.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Redis.Addr, convey.ShouldEqual, "cache:6379")
			})
		})

		convey.Convey("When the file path comes from LADDER_CONFIG", func() {
			path := writeConfigFile(t, "database:\n  driver: memory\nhttp:\n  port: 9090\n")
			_ = os.Setenv("LADDER_CONFIG", path)

			cfg, err := config.Load("")

			convey.Convey("Then it is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Port, convey.ShouldEqual, 9090)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.Default()

		convey.Convey("When the postgres driver has no URL", func() {
			err := cfg.Validate()

			convey.Convey("Then validation names the key", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "database.url")
			})
		})

		convey.Convey("When several values are wrong", func() {
			cfg.Database.Driver = "mysql"
			cfg.Ladder.SkillsPerLevel = 0
			cfg.App.Environment = config.EnvProduction

			err := cfg.Validate()

			convey.Convey("Then every problem is reported", func() {
				convey.So(err, convey.ShouldNotBeNil)
				msg := err.Error()
				convey.So(msg, convey.ShouldContainSubstring, "database.driver")
				convey.So(msg, convey.ShouldContainSubstring, "ladder.skills_per_level")
				convey.So(msg, convey.ShouldContainSubstring, "auth.jwt_secret")
				convey.So(strings.Count(msg, "\n  - "), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the memory driver is used", func() {
			cfg.Database.Driver = config.DriverMemory

			convey.Convey("Then no URL is needed", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}
