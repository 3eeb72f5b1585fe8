package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	promadapter "github.com/WIGGLES-dev/pobox/adapters/prometheus"
	"github.com/WIGGLES-dev/pobox/core/app"
	"github.com/WIGGLES-dev/pobox/core/borrow"
	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/runner"
)

// === Config ===

var (
	logLevel    = slog.LevelInfo
	N           = getEnvInt("N", 1_000)
	actors      = getEnvInt("ACTORS", 1_000)
	producers   = getEnvInt("PRODUCERS", runtime.GOMAXPROCS(0))
	batchSize   = getEnvInt("B", 100_000)
	maxShards   = getEnvInt("SHARDS", runtime.GOMAXPROCS(0)-1)
	chunkSize   = getEnvInt("CHUNK", 64)
	capacity    = getEnvInt("CAPACITY", 4096)
	dropping    = getEnv("DROPPING", "forbidden")
	strictOrder = getEnvBool("STRICT", false)
	readRatio   = getEnvInt("READ_PERCENT", 50)
	metricsAddr = getEnv("METRICS_ADDR", "")
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if v == "1" || strings.ToLower(v) == "true" {
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func parseDropping(s string) (runner.MessageDropping, error) {
	switch strings.ToLower(s) {
	case "forbidden":
		return runner.Forbidden, nil
	case "always":
		return runner.Always, nil
	case "optimized":
		return runner.Optimized, nil
	}
	return 0, fmt.Errorf("unknown drop policy %q", s)
}

// === Domain ===

type Ledger struct {
	Balance int
	Entries int
}

type op = dispatch.Sync[Ledger]

var (
	layout  = borrow.LayoutOf[Ledger]()
	deposit = dispatch.Write(func(l *Ledger) error {
		l.Balance++
		l.Entries++
		return nil
	}).Named("deposit")
	audit = dispatch.Read(layout.MustField("Balance", "Entries"), func(l *Ledger) error {
		if l.Balance != l.Entries {
			return errors.New("ledger out of balance")
		}
		return nil
	}).Named("audit")
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	policy, err := parseDropping(dropping)
	checkErr(err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if metricsAddr != "" {
		go serveMetrics(log, reg)
	}

	a, err := app.New[Ledger, op](app.Config[Ledger]{
		ID:      "loadtest",
		Context: ctx,
		Log:     log,
		Metrics: promadapter.NewRunnerMetrics(reg),
		Router: runner.RouterOptions{
			Options: runner.Options{
				Capacity:    capacity,
				ChunkSize:   chunkSize,
				Dropping:    policy,
				StrictOrder: strictOrder,
				Layout:      layout,
			},
			MaxShards: max(maxShards, 0),
		},
	})
	checkErr(err)

	fmt.Printf("actors: %d, messages/actor: %d, producers: %d, shards<=%d, chunk: %d, dropping: %s\n",
		actors, N, producers, maxShards, chunkSize, policy)

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...")

	keys := make([]string, actors)
	for i := range keys {
		keys[i] = fmt.Sprintf("ledger-%d", i)
		_, err := a.Actor(ctx, keys[i])
		checkErr(err)
	}

	startAt := time.Now()
	var (
		wg   sync.WaitGroup
		sent sync.Mutex
		seen int
		last = time.Now()
	)
	tick := func() {
		sent.Lock()
		defer sent.Unlock()
		seen++
		if seen%batchSize != 0 {
			return
		}
		mu := getMemUsage()
		n := time.Now()
		took := n.Sub(last)
		fmt.Printf(" | %7d msgs | %6d ms | %8d msgs/s | shards %d | (%d / %d) MiB mem (sys) |\n",
			batchSize, took.Milliseconds(), int(float64(batchSize)/took.Seconds()),
			a.Router().Shards(), mu.Alloc/1024/1024, mu.Sys/1024/1024)
		last = n
	}

	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range N {
				for k := p; k < len(keys); k += producers {
					d := deposit
					if (i*len(keys)+k)%100 < readRatio {
						d = audit
					}
					checkErr(a.Send(ctx, keys[k], d))
					tick()
				}
			}
		}()
	}
	wg.Wait()

	var deposits int
	for _, key := range keys {
		res, err := a.Forget(ctx, key)
		checkErr(err)
		deposits += res.State.Entries
	}
	checkErr(a.Shutdown(ctx))

	// === stats ===
	println("")
	println("==========================================")

	took := time.Since(startAt)
	runtime.GC()

	total := N * actors
	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("     messages: %d\n", total)
	fmt.Printf("     deposits: %d\n", deposits)
	fmt.Printf("       shards: %d\n", a.Router().Shards())
	fmt.Printf("   avg. msg/s: %d\n", int(float64(total)/took.Seconds()))
}

func serveMetrics(log *slog.Logger, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving metrics", slog.String("addr", metricsAddr))
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		log.Error("metrics server", slog.Any("error", err))
	}
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
