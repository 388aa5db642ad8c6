package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deckforge/internal/auth"
	"deckforge/internal/blobstore"
	"deckforge/internal/config"
	"deckforge/internal/db"
	"deckforge/internal/deck"
	"deckforge/internal/errlog"
	"deckforge/internal/handler"
	"deckforge/internal/llm"
	"deckforge/internal/pptx"
	"deckforge/internal/router"
	"deckforge/internal/store"
)

func main() {
	// Ensure data directory exists
	if err := os.MkdirAll("./data", 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// 1. Initialize config manager and load config
	cm, err := config.NewManager("./data/config.json")
	if err != nil {
		log.Fatalf("Failed to create config manager: %v", err)
	}
	if err := cm.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cm.Get()

	// Check for standalone CLI subcommands before touching the database
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "extract":
			runExtract(os.Args[2:])
			return
		case "build":
			runBuild(os.Args[2:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		}
	}

	// 2. Initialize error log and database
	if err := errlog.Init(); err != nil {
		log.Printf("Warning: error log unavailable: %v", err)
	}
	defer errlog.Close()

	database, err := db.InitDB(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 3. Create service instances
	bs, err := blobstore.New(cfg.Storage.BlobDir)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}
	ts := store.NewTemplateStore(database)
	gs := store.NewGenerationStore(database)
	planner := llm.NewAPIPlanner(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.ModelName, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	ds := deck.NewService(ts, bs, gs, planner, cfg.Deck.MaxSlides)
	sm := auth.NewSessionManager(database, 24*time.Hour)

	// 4. Create App and register routes
	app := handler.NewApp(database, sm, cm, ts, gs, bs, ds)
	cleanup := router.Register(app)
	defer cleanup()

	// 5. Start HTTP server with graceful shutdown
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic session cleanup
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := sm.CleanExpired(); err == nil && n > 0 {
				log.Printf("Cleaned %d expired sessions", n)
			}
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown error: %v", err)
		}
	}()

	fmt.Printf("Deckforge starting on http://%s\n", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
	log.Println("Server stopped")
}

// printUsage prints CLI usage information.
func printUsage() {
	fmt.Println(`Usage:
  deckforge                                  start the HTTP server (default port 8080)
  deckforge extract <template.pptx>          print the extracted template descriptor as JSON
  deckforge build <records.json> <out.pptx> [template.pptx]
                                             synthesize a deck from content records
  deckforge help                             show this help

extract command:
  Opens a .pptx template, reads its slide size, theme colors, fonts, and
  layout catalog, and prints the descriptor JSON to stdout.

  Example:
    deckforge extract corporate.pptx > descriptor.json

build command:
  Reads a JSON array of content records ({"layout": ..., "texts": {...},
  "notes": ...}) and writes a finished .pptx. When no template file is
  given, the built-in minimal template is used.

  Examples:
    deckforge build slides.json deck.pptx
    deckforge build slides.json deck.pptx corporate.pptx`)
}

// runExtract implements the "extract" subcommand.
func runExtract(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: deckforge extract <template.pptx>")
		os.Exit(2)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read %s: %v\n", args[0], err)
		os.Exit(1)
	}
	desc, err := pptx.Extract(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: marshal descriptor: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// runBuild implements the "build" subcommand.
func runBuild(args []string) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Println("Usage: deckforge build <records.json> <out.pptx> [template.pptx]")
		os.Exit(2)
	}
	recordsPath, outPath := args[0], args[1]

	raw, err := os.ReadFile(recordsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read %s: %v\n", recordsPath, err)
		os.Exit(1)
	}
	var records []pptx.ContentRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		fmt.Fprintf(os.Stderr, "Error: parse records: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "Error: records file contains no slides")
		os.Exit(1)
	}

	var templateBytes []byte
	var catalog map[string]pptx.LayoutConfig
	if len(args) == 3 {
		templateBytes, err = os.ReadFile(args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read %s: %v\n", args[2], err)
			os.Exit(1)
		}
		desc, err := pptx.Extract(templateBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		catalog = desc.Layouts
	}

	out, err := pptx.Build(templateBytes, catalog, records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d slides to %s (%d bytes)\n", len(records), outPath, len(out))
}
