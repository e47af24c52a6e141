// Package datasource provides the byte sources a cache loads from: memory,
// a directory, S3 and MinIO buckets, plus decorators for block
// decompression (zstd, lz4) and for throttling.
//
//	src := datasource.NewThrottled(
//	    datasource.NewCompressed(datasource.NewDir("/data/bricks"), datasource.CodecZstd),
//	    8, 256<<20)
//	c := cache.New(datasource.Loader(src), cache.Options[[]byte]{MaxMemory: 1 << 30})
//
// LoadFilter exposes the cache as a pipeline stage.
package datasource
