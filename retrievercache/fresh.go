package retrievercache

import "context"

type freshReadContextKey struct{}

// WithFreshRead marks ctx so that reads skip the cache, load from the base
// retriever and replace whatever entry the partition held for the key.
func WithFreshRead(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, freshReadContextKey{}, true)
}

func freshRead(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	fresh, _ := ctx.Value(freshReadContextKey{}).(bool)
	return fresh
}
