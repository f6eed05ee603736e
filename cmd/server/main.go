package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jverhagen/fotomemo/internal/api"
	"github.com/jverhagen/fotomemo/internal/config"
	"github.com/jverhagen/fotomemo/internal/importer"
	"github.com/jverhagen/fotomemo/internal/library"
	"github.com/jverhagen/fotomemo/internal/store"
	fmsync "github.com/jverhagen/fotomemo/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	// Initialize store.
	s, err := store.New(db)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the library into memory. Self-healing of the category list
	// happens here.
	lib := library.New(s)
	if err := lib.Load(ctx); err != nil {
		log.Fatalf("load library: %v", err)
	}

	// Pick up files that changed on disk while the server was down.
	if path := lib.FolderPath(); path != "" {
		if sources, err := importer.ReadFolder(path); err != nil {
			log.Printf("warning: rescan %s: %v", path, err)
		} else if added, err := lib.Import(ctx, importer.Process(sources)); err != nil {
			log.Printf("warning: rescan import: %v", err)
		} else if added > 0 {
			log.Printf("rescan picked up %d new files from %s", added, path)
		}
	}

	// Cloud mirror.
	session := fmsync.NewSession()
	var transport fmsync.Transport
	if cfg.SyncMode == "drive" {
		log.Println("using Google Drive sync transport")
		transport = fmsync.NewDriveClient(session, fmsync.WithFileName(cfg.DriveFileName))
	} else {
		log.Println("using in-memory stub sync transport")
		transport = fmsync.NewStubTransport()
	}
	mirror := fmsync.NewMirror(lib, transport, s, session, cfg.SyncDebounce)
	defer mirror.Close()
	lib.SetOnChange(mirror.MarkDirty)

	// Start API server.
	srv := api.New(lib, s, mirror, api.Options{
		CORSOrigin:     cfg.CORSOrigin,
		ThumbnailWidth: cfg.ThumbnailWidth,
	})
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down...")
		cancel()
		httpServer.Shutdown(context.Background())
	}()

	fmt.Printf("fotomemo server listening on http://localhost:%s\n", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
