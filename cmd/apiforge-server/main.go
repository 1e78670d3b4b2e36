// Command apiforge-server runs only the ingress HTTP API (upload, test
// generation, test execution) as a standalone process, for deployments
// that don't want the full apiforge CLI surface.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ormasoftchile/apiforge/internal/config"
	"github.com/ormasoftchile/apiforge/internal/logging"
	"github.com/ormasoftchile/apiforge/internal/server"
)

func main() {
	configPath := flag.String("config", "apiforge.yaml", "path to an optional apiforge.yaml config file")
	port := flag.Int("port", 8080, "port to listen on")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, slog.LevelInfo)
	if err := server.New(cfg, logger).Run(*port); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}
