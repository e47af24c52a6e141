// Command bench runs a synthetic frame workload against the cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/lodcache/cache"
	"github.com/IvanBrykalov/lodcache/config"
	"github.com/IvanBrykalov/lodcache/datasource"
	"github.com/IvanBrykalov/lodcache/executor"
	pmet "github.com/IvanBrykalov/lodcache/metrics/prom"
	"github.com/IvanBrykalov/lodcache/pipeline"
)

func main() {
	// ---- Flags ----
	var (
		cfgPath = flag.String("config", "", "YAML config file (LODCACHE_* env overrides apply)")
		mode    = flag.String("mode", "pipeline", "workload: direct | pipeline")

		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		inFlight = flag.Int("frames", 4, "frames in flight")
		perFrame = flag.Int("ids", 64, "object ids requested per frame")
		par      = flag.Int("parallelism", 8, "concurrent loads per frame")

		objects = flag.Int("objects", 100_000, "synthetic object count (memory source)")
		objSize = flag.String("object_size", "64KiB", "mean synthetic object size (memory source)")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	)
	flag.Parse()

	// ---- Configuration ----
	cfg := config.NewDefault()
	if *cfgPath != "" {
		if err := cfg.LoadFromFile(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.Logger(os.Stderr)

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", "addr", *pprofAddr)
			logger.Error("pprof server stopped", "error", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	cacheMetrics := pmet.New(nil, cfg.Metrics.Namespace, "cache", nil)
	execMetrics := pmet.NewExecutor(nil, cfg.Metrics.Namespace, "executor", nil)
	if cfg.Metrics.Addr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics: serving", "addr", cfg.Metrics.Addr)
			logger.Error("metrics server stopped", "error", http.ListenAndServe(cfg.Metrics.Addr, nil))
		}()
	}

	// ---- Data source ----
	ctx := context.Background()
	src, err := cfg.OpenSource(ctx)
	if err != nil {
		log.Fatalf("open source: %v", err)
	}
	if mem, ok := src.(*datasource.Memory); ok {
		mean, err := config.ParseSize(*objSize)
		if err != nil {
			log.Fatal(err)
		}
		fill(mem, *objects, mean, *seed)
	}

	// ---- Build cache ----
	opt, err := cfg.CacheOptions(logger)
	if err != nil {
		log.Fatal(err)
	}
	opt.Metrics = cacheMetrics
	c := cache.New(datasource.Loader(src), opt)
	defer func() { _ = c.Close() }()

	workers := executor.NewWorkers(cfg.Workers.Threads, executor.WorkersOptions{
		QueueSize: cfg.Workers.QueueSize,
		Logger:    logger,
	})
	defer func() { _ = workers.Close() }()
	exec := executor.New(workers, executor.Options{Metrics: execMetrics, Logger: logger})
	defer func() { _ = exec.Close() }()

	// ---- Load generation ----
	var frames, requested, missing, bytesRead atomic.Int64
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	if *objects < 1 {
		log.Fatal("objects must be positive")
	}
	keysMax := uint64(*objects - 1)
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(*inFlight)
	for w := 0; w < *inFlight; w++ {
		go func(id int) {
			defer wg.Done()

			// Each frame producer gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(*seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, *zipfS, *zipfV, keysMax)
			pick := func() []cache.ID {
				ids := make([]cache.ID, *perFrame)
				for i := range ids {
					ids[i] = cache.ID(localZipf.Uint64() + 1) // fill numbers objects from 1
				}
				return ids
			}

			for runCtx.Err() == nil {
				ids := pick()
				var n, miss int64
				switch *mode {
				case "direct":
					n, miss = directFrame(runCtx, c, ids)
				default:
					n, miss = pipelineFrame(exec, c, ids, *par, logger)
				}
				frames.Add(1)
				requested.Add(int64(len(ids)))
				missing.Add(miss)
				bytesRead.Add(n)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	fmt.Printf("mode=%s policy=%s budget=%s workers=%d frames_in_flight=%d dur=%v seed=%d\n",
		*mode, cfg.Cache.Policy, humanize.IBytes(uint64(cfg.MaxMemoryBytes())), workers.Size(), *inFlight, elapsed, *seed)
	fmt.Printf("frames=%d (%.1f frames/s)  ids=%d  missing=%d  touched=%s\n",
		frames.Load(), float64(frames.Load())/elapsed.Seconds(), requested.Load(), missing.Load(),
		humanize.IBytes(uint64(bytesRead.Load())))
	fmt.Print(st.String())
}

// fill populates mem with n objects whose sizes vary around mean.
func fill(mem *datasource.Memory, n int, mean int64, seed int64) {
	r := rand.New(rand.NewSource(seed))
	for i := 1; i <= n; i++ {
		size := max(1, mean/2+r.Int63n(mean+1))
		buf := make([]byte, size)
		buf[0] = byte(i)
		mem.Put(cache.ID(i), buf)
	}
}

// directFrame acquires every id from the calling goroutine.
func directFrame(ctx context.Context, c *cache.Cache[[]byte], ids []cache.ID) (n, missing int64) {
	for _, id := range ids {
		h := c.GetOrCreate(ctx, id)
		if !h.Valid() {
			missing++
			continue
		}
		n += h.Size()
		h.Release()
	}
	return n, missing
}

// pipelineFrame runs pick -> load -> consume as one pipeline on the executor.
func pipelineFrame(exec *executor.Executor, c *cache.Cache[[]byte], ids []cache.ID, par int, logger *slog.Logger) (n, missing int64) {
	p := pipeline.New("frame")
	pick := p.AddFunc("pick", func(_ pipeline.FutureMap, out pipeline.PromiseMap) {
		_ = out.Set(datasource.PortIDs, ids)
	}, nil, []pipeline.PortInfo{pipeline.NewPortInfo[[]cache.ID](datasource.PortIDs)}, false)

	load := p.Add("load", datasource.NewLoadFilter(c, par, logger), false)

	consume := p.AddFunc("consume", func(in pipeline.FutureMap, out pipeline.PromiseMap) {
		hs, err := pipeline.TryGet[[]*cache.Handle[[]byte]](in.Get(datasource.PortHandles))
		if err != nil {
			return
		}
		var total int64
		for _, h := range hs {
			total += h.Size()
			h.Release()
		}
		_ = out.Set("bytes", total)
	}, []pipeline.PortInfo{pipeline.NewPortInfo[[]*cache.Handle[[]byte]](datasource.PortHandles)},
		[]pipeline.PortInfo{pipeline.NewPortInfo[int64]("bytes")}, true)

	if err := pipeline.Connect(pick, load, datasource.PortIDs); err != nil {
		panic(err)
	}
	if err := pipeline.Connect(load, consume, datasource.PortHandles); err != nil {
		panic(err)
	}

	exec.Schedule(p).Wait()

	lf, _ := load.Future(datasource.PortMissing)
	if ms, err := pipeline.TryGet[[]cache.ID](lf); err == nil {
		missing = int64(len(ms))
	}
	bf, _ := consume.Future("bytes")
	if v, err := pipeline.TryGet[int64](bf); err == nil {
		n = v
	}
	return n, missing
}
