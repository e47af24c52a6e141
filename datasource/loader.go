package datasource

import (
	"context"

	"github.com/IvanBrykalov/lodcache/cache"
)

// Loader adapts a Source to a cache loader for byte buffers.
func Loader(src Source) cache.Loader[[]byte] {
	return cache.LoaderFunc[[]byte](func(ctx context.Context, id cache.ID) ([]byte, error) {
		return src.Read(ctx, id)
	})
}
