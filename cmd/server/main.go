package main

import (
	"log"
	"net/http"
	"os"

	"github.com/jacksonlee411/dynfield/internal/server"
	"github.com/jacksonlee411/dynfield/pkg/logging"
)

func main() {
	logger, err := logging.New(logging.DebugFromEnv())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	h, err := server.NewHandlerWithOptions(server.HandlerOptions{Logger: logger})
	if err != nil {
		logger.Fatalw("handler init failed", "error", err)
	}

	logger.Infow("listening", "addr", addr)
	if err := http.ListenAndServe(addr, h); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}
