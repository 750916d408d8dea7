package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadDefaults(t *testing.T) {
	Convey("Given no overrides", t, func() {
		Convey("When loading", func() {
			cfg, err := Load(context.Background())

			Convey("Then defaults should apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.EMAAlpha, ShouldEqual, 0.5)
				So(cfg.LockShards, ShouldEqual, 256)
				So(cfg.DedupeSize, ShouldEqual, 100_000)
				So(cfg.NeighborCount, ShouldEqual, 5)
				So(cfg.TopK, ShouldEqual, 10)
				So(cfg.AggregateMode, ShouldEqual, "sum")
				So(cfg.StoreCollection, ShouldEqual, "user_profiles")
				So(cfg.StoreSparseName, ShouldEqual, "sparse")
				So(cfg.StoreURL, ShouldBeEmpty)
				So(cfg.AuthEnabled, ShouldBeFalse)
			})
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AFFINITY_ADDR", ":8080")
	t.Setenv("AFFINITY_EMA_ALPHA", "0.3")
	t.Setenv("AFFINITY_TOP_K", "20")
	t.Setenv("AFFINITY_AGGREGATE_MODE", "average")

	Convey("Given environment overrides", t, func() {
		Convey("When loading", func() {
			cfg, err := Load(context.Background())

			Convey("Then the overrides should win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8080")
				So(cfg.EMAAlpha, ShouldEqual, 0.3)
				So(cfg.TopK, ShouldEqual, 20)
				So(cfg.AggregateMode, ShouldEqual, "average")
			})

			Convey("And untouched fields should keep defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.LockShards, ShouldEqual, 256)
			})
		})
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("addr: \":7070\"\nema_alpha: 0.8\nstore_collection: profiles_test\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AFFINITY_CONFIG", path)

	Convey("Given a YAML config file", t, func() {
		Convey("When loading", func() {
			cfg, err := Load(context.Background())

			Convey("Then file values should apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.EMAAlpha, ShouldEqual, 0.8)
				So(cfg.StoreCollection, ShouldEqual, "profiles_test")
			})
		})
	})
}

func TestLoadFileEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AFFINITY_CONFIG", path)
	t.Setenv("AFFINITY_ADDR", ":6060")

	Convey("Given a file and an env var for the same key", t, func() {
		Convey("When loading", func() {
			cfg, err := Load(context.Background())

			Convey("Then the env var should win", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
			})
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("AFFINITY_CONFIG", "/nonexistent/config.yaml")

	Convey("Given a missing config file", t, func() {
		Convey("When loading", func() {
			_, err := Load(context.Background())

			Convey("Then loading should fail", func() {
				So(errors.Is(err, ErrLoadConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLoadInvalidAlpha(t *testing.T) {
	t.Setenv("AFFINITY_EMA_ALPHA", "1.5")

	Convey("Given an out-of-range alpha", t, func() {
		Convey("When loading", func() {
			_, err := Load(context.Background())

			Convey("Then validation should fail", func() {
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLoadInvalidAggregateMode(t *testing.T) {
	t.Setenv("AFFINITY_AGGREGATE_MODE", "median")

	Convey("Given an unknown aggregate mode", t, func() {
		Convey("When loading", func() {
			_, err := Load(context.Background())

			Convey("Then validation should fail", func() {
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLoadAuthWithoutSecret(t *testing.T) {
	t.Setenv("AFFINITY_AUTH_ENABLED", "true")

	Convey("Given auth enabled without a secret", t, func() {
		Convey("When loading", func() {
			_, err := Load(context.Background())

			Convey("Then validation should fail", func() {
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := New()

		Convey("Then it should validate", func() {
			So(cfg.validate(), ShouldBeNil)
		})

		Convey("When the address is cleared", func() {
			cfg.Addr = ""

			Convey("Then validation should fail", func() {
				So(errors.Is(cfg.validate(), ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When an event weight is negative", func() {
			cfg.EventWeights = map[string]float64{"VIEW": -1}

			Convey("Then validation should fail", func() {
				So(errors.Is(cfg.validate(), ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When auth has a secret", func() {
			cfg.AuthEnabled = true
			cfg.JWTSecret = "s3cret"

			Convey("Then validation should pass", func() {
				So(cfg.validate(), ShouldBeNil)
			})
		})
	})
}
