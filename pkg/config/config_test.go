package config

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"

	"github.com/oneopane/webhttp/pkg/streaming"
)

func TestLoadAppliesDefaultsWhenKeyMissing(t *testing.T) {
	v := viper.New()
	Defaults(v, "webhttp")

	opts, err := Load(v, "webhttp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.FollowRedirects || opts.MaxRedirects != 10 {
		t.Fatalf("expected defaults, got %+v", opts)
	}
}

func TestLoadOverridesFromYAML(t *testing.T) {
	v := viper.New()
	Defaults(v, "webhttp")
	v.SetConfigType("yaml")

	yamlData := []byte(`
webhttp:
  max_redirects: 3
  use_connection_pool: false
  overflow_policy: heap_fallback
`)
	if err := v.MergeConfig(bytes.NewReader(yamlData)); err != nil {
		t.Fatalf("merge config failed: %v", err)
	}

	opts, err := Load(v, "webhttp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.MaxRedirects != 3 {
		t.Fatalf("expected max_redirects override to 3, got %d", opts.MaxRedirects)
	}
	if opts.UseConnectionPool {
		t.Fatalf("expected use_connection_pool override to false")
	}
	if opts.OverflowPolicy != streaming.HeapFallback {
		t.Fatalf("expected overflow_policy heap_fallback, got %v", opts.OverflowPolicy)
	}
}

func TestLoadRejectsInvalidOverflowPolicy(t *testing.T) {
	v := viper.New()
	Defaults(v, "webhttp")
	v.SetConfigType("yaml")

	yamlData := []byte(`
webhttp:
  overflow_policy: not_a_real_policy
`)
	if err := v.MergeConfig(bytes.NewReader(yamlData)); err != nil {
		t.Fatalf("merge config failed: %v", err)
	}

	if _, err := Load(v, "webhttp"); err == nil {
		t.Fatalf("expected validation error for invalid overflow_policy")
	}
}

func TestLoadRejectsNegativeMaxRedirects(t *testing.T) {
	v := viper.New()
	Defaults(v, "webhttp")
	v.SetConfigType("yaml")

	yamlData := []byte(`
webhttp:
  max_redirects: -1
`)
	if err := v.MergeConfig(bytes.NewReader(yamlData)); err != nil {
		t.Fatalf("merge config failed: %v", err)
	}

	if _, err := Load(v, "webhttp"); err == nil {
		t.Fatalf("expected validation error for negative max_redirects")
	}
}
