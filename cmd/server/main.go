package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/amdinfer/inference-server/pkg/config"
	"github.com/amdinfer/inference-server/pkg/endpoint"
	"github.com/amdinfer/inference-server/pkg/hardware"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/observability/metrics"
	"github.com/amdinfer/inference-server/pkg/repository"
	"github.com/amdinfer/inference-server/pkg/transport/grpcserver"
	"github.com/amdinfer/inference-server/pkg/transport/httpserver"
	"github.com/amdinfer/inference-server/pkg/transport/wsserver"
)

var (
	flagModelRepository  string
	flagEnableWatcher    bool
	flagUsePollingWatcher bool
	flagHTTPPort         int
	flagGRPCPort         int
	flagPluginDir        string
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "amdinfer-server",
		Short: "Inference server: endpoint registry, soft batching, KServe v2 transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&flagModelRepository, "model-repository", cfg.ModelRepository, "path to the model repository")
	rootCmd.Flags().BoolVar(&flagEnableWatcher, "enable-repository-watcher", false, "watch the model repository for new models")
	rootCmd.Flags().BoolVar(&flagUsePollingWatcher, "use-polling-watcher", false, "use a polling watcher instead of fsnotify")
	rootCmd.Flags().IntVar(&flagHTTPPort, "http-port", cfg.HTTPPort, "HTTP port for the KServe v2 REST + metrics surface")
	rootCmd.Flags().IntVar(&flagGRPCPort, "grpc-port", cfg.GRPCPort, "gRPC port for the KServe v2 inference surface")
	rootCmd.Flags().StringVar(&flagPluginDir, "plugin-dir", cfg.PluginDir, "directory to search for dynamically loaded worker plugins")

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("❌ %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log.Printf("🧠 Server %s starting", cfg.ServerID)
	log.Printf("   HTTP on port %d | gRPC on port %d", flagHTTPPort, flagGRPCPort)
	log.Printf("   Model repository: %s", flagModelRepository)

	pool := memory.NewPool()
	manager := endpoint.NewManager(pool, flagPluginDir)
	metricsReg := metrics.New()

	probe, err := hardware.NewProbe()
	if err != nil {
		log.Printf("⚠️  Hardware probe unavailable: %v", err)
		probe = nil
	}

	httpSrv := httpserver.New(manager, metricsReg, probe)
	wsSrv := wsserver.New(manager)
	grpcSrv := grpcserver.New(manager)

	mux := http.NewServeMux()
	mux.Handle("/", httpSrv.Handler())
	mux.HandleFunc("GET /ws/{model}", wsSrv.HandleWS)

	httpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", flagHTTPPort))
	if err != nil {
		return fmt.Errorf("listening on HTTP port %d: %w", flagHTTPPort, err)
	}
	httpServer := &http.Server{Handler: mux}

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", flagGRPCPort))
	if err != nil {
		return fmt.Errorf("listening on gRPC port %d: %w", flagGRPCPort, err)
	}
	grpcServer := grpc.NewServer()
	grpcSrv.Register(grpcServer)

	var watcher *repository.Watcher
	if flagEnableWatcher {
		watcher = repository.New(flagModelRepository, manager)
		if err := watcher.ScanOnce(); err != nil {
			log.Printf("⚠️  Initial repository scan failed: %v", err)
		}
		if flagUsePollingWatcher {
			watcher.StartPolling(cfg.PollInterval)
			log.Printf("📡 Repository polling watcher started: interval=%v", cfg.PollInterval)
		} else if err := watcher.StartFSNotify(); err != nil {
			log.Printf("⚠️  fsnotify watcher failed, falling back to polling: %v", err)
			watcher.StartPolling(cfg.PollInterval)
		} else {
			log.Printf("📡 Repository fsnotify watcher started")
		}
	}

	go func() {
		log.Printf("🚀 HTTP server listening on %s", httpListener.Addr().String())
		if err := httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	go func() {
		log.Printf("🚀 gRPC server listening on %s", grpcListener.Addr().String())
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatalf("❌ gRPC server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if watcher != nil {
		watcher.Stop()
	}
	grpcServer.GracefulStop()
	_ = httpServer.Close()
	manager.Shutdown()
	if probe != nil {
		probe.Shutdown()
	}
	log.Println("✅ Server stopped")
	return nil
}
