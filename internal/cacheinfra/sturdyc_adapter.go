package cacheinfra

import (
	"context"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// ErrNotFound is returned by a fetch function to report that the source has
// no record for the key. The result is passed back to the caller and never
// stored.
var ErrNotFound = sturdyc.ErrNotFound

// FetchFn loads the value for a key from the source of truth.
type FetchFn = func(ctx context.Context) (any, error)

// Clock is the time source used for expiry. Tests swap in sturdyc.NewTestClock.
type Clock = sturdyc.Clock

// Config holds the configuration for one sturdyc partition.
type Config struct {
	// Capacity is the maximum number of entries the partition holds.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the time-to-live of an entry, measured from its last write.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when a shard reaches its capacity. Must be between 1-100.
	// Default: 10
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept.
	// Zero uses the sturdyc default.
	EvictionInterval time.Duration

	// Clock overrides the wall clock. Nil uses the real clock.
	Clock Clock
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the Config to sturdyc options. Capacity,
// NumShards, TTL and EvictionPercentage go straight to sturdyc.New.
//
// Early refreshes and missing-record storage are never enabled: the first
// would call the source on a cache hit and the second would cache absent
// results.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	if c.Clock != nil {
		options = append(options, sturdyc.WithClock(c.Clock))
	}

	return options
}

// Validate checks if the configuration values are valid.
// It returns a *ConfigError naming the first offending field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0"),
			validation.When(c.NumShards > 0,
				validation.Min(c.NumShards).Error("must be at least NumShards"))),
		validation.Field(&c.NumShards,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0")),
		validation.Field(&c.TTL,
			validation.Required.Error("must be greater than 0"),
			validation.Min(time.Duration(1)).Error("must be greater than 0")),
		validation.Field(&c.EvictionPercentage,
			validation.Required.Error("must be between 1 and 100"),
			validation.Min(1).Error("must be between 1 and 100"),
			validation.Max(100).Error("must be between 1 and 100")),
		validation.Field(&c.EvictionInterval,
			validation.Min(time.Duration(0)).Error("must be non-negative")),
	)
	return asConfigError(err)
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

func asConfigError(err error) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok || len(errs) == 0 {
		return err
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return &ConfigError{Field: fields[0], Message: errs[fields[0]].Error()}
}

// SturdycService is an in-process partition backed by a sturdyc client.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycService{client: client}, nil
}

// GetOrFetch returns the cached value for key, or calls fetchFn and caches
// its result when it succeeds. Concurrent misses on the same key share one
// fetch. Errors, ErrNotFound included, leave the partition untouched.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn FetchFn) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}

	// sturdyc rejects untyped nil results, errors included, so the fetch
	// always hands it a non-nil value and the real error is kept here.
	var fetchErr error
	v, err := s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetchFn(ctx)
		if err != nil {
			fetchErr = err
			return nilValue{}, err
		}
		return box(v), nil
	})
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, err
	}
	return unbox(v), nil
}

// Get returns the live entry for key. Expired entries read as absent.
func (s *SturdycService) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	return unbox(v), true, nil
}

// Set replaces the entry for key and restarts its TTL.
func (s *SturdycService) Set(_ context.Context, key string, value any) error {
	s.client.Set(key, box(value))
	return nil
}

// nilValue stands in for a stored nil.
type nilValue struct{}

func box(v any) any {
	if v == nil {
		return nilValue{}
	}
	return v
}

func unbox(v any) any {
	if _, ok := v.(nilValue); ok {
		return nil
	}
	return v
}

// Delete removes a single entry. Missing keys are ignored.
func (s *SturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Size reports the number of stored entries, expired ones included until the
// next sweep.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
