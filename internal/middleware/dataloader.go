package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/entityhistory/internal/entityloader"
	"github.com/rpattn/entityhistory/internal/repository"
)

type ctxKey string

const latestVersionLoaderKey ctxKey = "latestVersionLoader"

// DataLoaderMiddleware attaches a fresh loader to every request context
func DataLoaderMiddleware(repo repository.VersionRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := entityloader.NewLatestVersionLoader(repo)
			next.ServeHTTP(w, r.WithContext(WithLatestVersionLoader(r.Context(), loader)))
		})
	}
}

// WithLatestVersionLoader stores loader in ctx.
func WithLatestVersionLoader(ctx context.Context, loader *entityloader.LatestVersionLoader) context.Context {
	return context.WithValue(ctx, latestVersionLoaderKey, loader)
}

// LatestVersionLoaderFromContext retrieves the loader from context
func LatestVersionLoaderFromContext(ctx context.Context) *entityloader.LatestVersionLoader {
	if l, ok := ctx.Value(latestVersionLoaderKey).(*entityloader.LatestVersionLoader); ok {
		return l
	}
	return nil
}
