package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hexfield/server"
)

// hexfield entry point: HTTP + WebSocket server over the room registry.
func main() {
	var (
		addr        = flag.String("addr", ":8080", "server listen address, e.g. :8080")
		logFile     = flag.String("log", "hexfield.log", "log file path")
		logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
		graphPath   = flag.String("graph", "graph.json", "map graph JSON file")
		identityURL = flag.String("identity", "http://localhost:9000", "identity provider base URL")
		roomCap     = flag.Int("room-cap", 16, "hard per-room occupancy limit")
		webDir      = flag.String("web", "web", "static client assets directory")
	)
	flag.Parse()

	if err := server.InitLogger(*logFile, *logLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	graph, err := server.LoadGraphFile(*graphPath)
	if err != nil {
		server.Log.Warnf("graph load failed (%v); starting with an empty graph", err)
		graph = server.NewMemoryGraph()
	}
	gate := server.NewHTTPIdentityGate(*identityURL)
	registry := server.NewRegistry(graph, gate, server.Log, *roomCap)
	srv := &server.Server{
		Registry:  registry,
		Graph:     graph,
		Log:       server.Log,
		GraphPath: *graphPath,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(*webDir)))
	mux.HandleFunc("/admin/points", srv.HandleAdminPoints)
	mux.HandleFunc("/admin/transitions", srv.HandleAdminTransitions)
	mux.HandleFunc("/admin/save", srv.HandleAdminSave)
	mux.HandleFunc("/metrics", srv.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		server.Log.Infof("hexfield listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}
