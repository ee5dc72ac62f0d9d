package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var (
		addr       = flag.String("addr", ":"+envString("PORT", "8787"), "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		statePath  = flag.String("state", envString("WORLD_STATE_FILE", ""), "world state file (default: <data>/world.json)")
		disableDB  = flag.Bool("disable_db", envBool("DISABLE_DB", false), "disable the sqlite read model")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	rt, err := newRuntime(serverConfig{
		DataDir:    *dataDir,
		TuningPath: *tuningPath,
		StatePath:  *statePath,
		DisableDB:  *disableDB,
	}, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		rt.run(ctx)
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           rt.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s decay_interval=%s zones=%d", *addr, rt.tune.DecayInterval(), len(rt.tune.Zones))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cancel()
		<-runDone
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-runDone
	logger.Printf("shutdown complete")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
