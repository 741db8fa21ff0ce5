package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	persistlog "voxeltrace.ai/internal/persistence/log"
	"voxeltrace.ai/internal/sim/game"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/sim/svo"
	"voxeltrace.ai/internal/sim/terrain/gen"
	"voxeltrace.ai/internal/sim/tuning"
	"voxeltrace.ai/internal/transport/observer"
	"voxeltrace.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 0, "override the world seed from tuning.yaml (0 keeps it)")
		disableLog = flag.Bool("disable_logs", false, "disable step and audit logs")
		logFile    = flag.String("log_file", "", "also write server logs to this rotating file (optional)")
		logMaxMB   = flag.Int("log_max_mb", 100, "rotate -log_file after this many megabytes")
		logMaxAge  = flag.Int("log_max_age", 14, "days to keep rotated -log_file backups")
	)
	flag.Parse()

	var out io.Writer = os.Stdout
	if f := strings.TrimSpace(*logFile); f != "" {
		lj := &lumberjack.Logger{
			Filename: f,
			MaxSize:  *logMaxMB,
			MaxAge:   *logMaxAge,
			Compress: true,
		}
		defer lj.Close()
		out = io.MultiWriter(os.Stdout, lj)
	}
	logger := log.New(out, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.World.Seed = *seed
	}

	w := svo.New(tune.WorldConfig())
	g := game.New(tune.GameConfig(), w, gen.New(tune.GenParams()), logger)

	start := time.Now()
	g.Generate()
	logger.Printf("generated world size=%d seed=%d nodes=%d (%s of %s budget) in %s",
		w.Size(), tune.World.Seed, w.LastUsedNode()+1,
		humanize.IBytes(uint64(w.LastUsedNode()+1)*svo.NodeSize), humanize.IBytes(uint64(w.MaxNodes())*svo.NodeSize),
		time.Since(start).Round(time.Millisecond))

	sink := nodesync.NewBufferSink(w.MaxNodes())
	g.SetSink(sink)

	if !*disableLog {
		stepLog := persistlog.NewStepLogger(*dataDir)
		auditLog := persistlog.NewAuditLogger(*dataDir)
		defer stepLog.Close()
		defer auditLog.Close()
		g.SetStepLogger(stepLog)
		g.SetAuditLogger(auditLog)
		logger.Printf("step log run_id=%s dir=%s", stepLog.RunID(), *dataDir)
	}

	obsSrv, err := observer.NewServer(g, logger, observer.Options{
		AllowRemote: tune.Observer.AllowRemote,
		MaxSessions: tune.Observer.MaxSessions,
		FrameQueue:  tune.Observer.FrameQueue,
		ZstdLevel:   zstd.EncoderLevelFromZstd(tune.Observer.ZstdLevel),
		Seed:        tune.World.Seed,
	})
	if err != nil {
		logger.Fatalf("observer server: %v", err)
	}
	defer obsSrv.Close()

	intentSrv, err := ws.NewServer(g, logger)
	if err != nil {
		logger.Fatalf("intent server: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	mux.HandleFunc("/v1/intent", intentSrv.IntentHandler())
	mux.HandleFunc("/v1/intent/ws", intentSrv.Handler())
	if envBool("VT_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VT_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		err := g.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	grp.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	if err := grp.Wait(); err != nil {
		logger.Printf("stopped: %v", err)
	}
	logger.Printf("shutdown tick=%d mirrored_nodes=%d", g.CurrentTick(), sink.Len())
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

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
