package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/plastic-detect-mcp/internal/config"
	"github.com/ironsheep/plastic-detect-mcp/internal/httpapi"
	"github.com/ironsheep/plastic-detect-mcp/internal/server"
	"github.com/ironsheep/plastic-detect-mcp/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var httpAddr string

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("plastic-detect-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "--http":
			httpAddr = ":8080"
			if len(os.Args) > 2 {
				httpAddr = os.Args[2]
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q, see --help\n", os.Args[1])
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if httpAddr == "" {
		httpAddr = cfg.HTTPAddr
	}

	if cfg.Debug() {
		log.Printf("Plastic Detect MCP v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	var analyzer vision.Analyzer
	if cfg.VisionEnabled() {
		client, err := vision.New(cfg.Vision)
		if err != nil {
			log.Fatalf("Vision client error: %v", err)
		}
		analyzer = client
		if cfg.Debug() {
			log.Printf("Vision model: %s", client.Model())
		}
	} else {
		log.Printf("GEMINI_API_KEY not set, plastic detection is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if httpAddr != "" {
		if err := serveHTTP(ctx, httpAddr, &httpapi.App{Vision: analyzer, Render: cfg.Render}); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	srv := server.New(server.Options{
		Render: cfg.Render,
		Vision: analyzer,
		Debug:  cfg.Debug(),
	})
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server error: %v", err)
	}
}

// serveHTTP runs the HTTP API until ctx is canceled.
func serveHTTP(ctx context.Context, addr string, app *httpapi.App) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func printHelp() {
	fmt.Println("plastic-detect-mcp - MCP server for plastic waste detection")
	fmt.Println()
	fmt.Println("Usage: plastic-detect-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v     Print version information")
	fmt.Println("  --help, -h        Print this help message")
	fmt.Println("  --http [ADDR]     Serve the HTTP API instead of MCP (default :8080)")
	fmt.Println()
	fmt.Println("Environment variables (also read from ./.env):")
	fmt.Println("  GEMINI_API_KEY=...              Enable plastic_detect")
	fmt.Println("  GEMINI_MODEL=gemini-1.5-flash   Vision model")
	fmt.Println("  PLASTIC_MCP_LOG_LEVEL=debug     Enable debug logging")
	fmt.Println("  PLASTIC_HTTP_ADDR=:8080         Serve the HTTP API")
	fmt.Println("  PLASTIC_CANVAS_WIDTH=800        Default canvas size")
	fmt.Println("  PLASTIC_CANVAS_HEIGHT=600")
	fmt.Println("  PLASTIC_VIEW_MODE=detailed      detailed or summary")
	fmt.Println("  PLASTIC_DENSE_COUNT=15          Adaptive threshold settings")
	fmt.Println("  PLASTIC_DENSE_THRESHOLD=0.8")
	fmt.Println("  PLASTIC_SPARSE_THRESHOLD=0.5")
	fmt.Println()
	fmt.Println("Without --http the server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
