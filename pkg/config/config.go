// Package config loads Client Options from a YAML file or environment
// variables via viper, decoded with mapstructure. Grounded on nabbar-golib's
// componentLog pattern (config/components/log/config.go): unmarshal a
// sub-key into a plain struct, then validate before handing it to the
// caller. A Client built from DefaultOptions() never needs this package;
// it exists for callers that want to externalize pooling/timeout policy
// instead of compiling it in.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/oneopane/webhttp/pkg/httpclient"
	"github.com/oneopane/webhttp/pkg/streaming"
)

// FileConfig mirrors httpclient.Options with mapstructure/validate tags so
// it can be decoded directly from YAML or environment variables, where
// durations and the SSE overflow policy arrive as strings.
type FileConfig struct {
	DefaultTimeout        time.Duration `mapstructure:"default_timeout"`
	FollowRedirects       bool          `mapstructure:"follow_redirects"`
	MaxRedirects          int           `mapstructure:"max_redirects" validate:"gte=0"`
	UseConnectionPool     bool          `mapstructure:"use_connection_pool"`
	MaxConnectionsPerHost int           `mapstructure:"max_connections_per_host" validate:"gte=0"`
	MaxIdleTime           time.Duration `mapstructure:"max_idle_time"`
	MaxKeepaliveRequests  int           `mapstructure:"max_keepalive_requests" validate:"gte=0"`
	BodyMemLimit          int64         `mapstructure:"body_mem_limit" validate:"gte=0"`
	ParseSSE              bool          `mapstructure:"parse_sse"`
	OverflowPolicy        string        `mapstructure:"overflow_policy" validate:"omitempty,oneof=return_error heap_fallback"`
	SSEArenaSize          int           `mapstructure:"sse_arena_size" validate:"gte=0"`
}

var validate = validator.New()

// Load reads key (a viper config path, e.g. "webhttp") from an already
// populated viper.Viper — the caller owns SetConfigFile/AutomaticEnv/
// ReadInConfig — and returns validated Options built from it. Fields absent
// from the source keep FileConfig's Go zero values, so callers that only
// want to override a couple of keys should start from a viper instance
// seeded with DefaultOptions (see Defaults).
func Load(v *viper.Viper, key string) (httpclient.Options, error) {
	var fc FileConfig
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.UnmarshalKey(key, &fc, viper.DecodeHook(decodeHook)); err != nil {
		return httpclient.Options{}, err
	}
	if err := validate.Struct(fc); err != nil {
		return httpclient.Options{}, err
	}
	return fc.toOptions(), nil
}

// Defaults seeds a viper.Viper with DefaultOptions() under key, so a
// subsequent config file or environment variable only needs to set the
// fields it wants to override.
func Defaults(v *viper.Viper, key string) {
	opts := httpclient.DefaultOptions()
	v.SetDefault(key+".default_timeout", opts.DefaultTimeout)
	v.SetDefault(key+".follow_redirects", opts.FollowRedirects)
	v.SetDefault(key+".max_redirects", opts.MaxRedirects)
	v.SetDefault(key+".use_connection_pool", opts.UseConnectionPool)
	v.SetDefault(key+".max_connections_per_host", opts.MaxConnectionsPerHost)
	v.SetDefault(key+".max_idle_time", opts.MaxIdleTime)
	v.SetDefault(key+".max_keepalive_requests", opts.MaxKeepaliveRequests)
	v.SetDefault(key+".body_mem_limit", opts.BodyMemLimit)
	v.SetDefault(key+".parse_sse", opts.ParseSSE)
	v.SetDefault(key+".overflow_policy", overflowPolicyName(opts.OverflowPolicy))
	v.SetDefault(key+".sse_arena_size", opts.SSEArenaSize)
}

func (fc FileConfig) toOptions() httpclient.Options {
	return httpclient.Options{
		DefaultTimeout:        fc.DefaultTimeout,
		FollowRedirects:       fc.FollowRedirects,
		MaxRedirects:          fc.MaxRedirects,
		UseConnectionPool:     fc.UseConnectionPool,
		MaxConnectionsPerHost: fc.MaxConnectionsPerHost,
		MaxIdleTime:           fc.MaxIdleTime,
		MaxKeepaliveRequests:  fc.MaxKeepaliveRequests,
		BodyMemLimit:          fc.BodyMemLimit,
		ParseSSE:              fc.ParseSSE,
		OverflowPolicy:        parseOverflowPolicy(fc.OverflowPolicy),
		SSEArenaSize:          fc.SSEArenaSize,
	}
}

func parseOverflowPolicy(s string) streaming.OverflowPolicy {
	if strings.EqualFold(s, "heap_fallback") {
		return streaming.HeapFallback
	}
	return streaming.ReturnError
}

func overflowPolicyName(p streaming.OverflowPolicy) string {
	if p == streaming.HeapFallback {
		return "heap_fallback"
	}
	return "return_error"
}
