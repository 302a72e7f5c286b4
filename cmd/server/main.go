// cmd/server/main.go
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/EliasL15/music-game-backend/internal/auth"
	"github.com/EliasL15/music-game-backend/internal/handlers"
	"github.com/EliasL15/music-game-backend/internal/songsource"
)

func main() {
	auth.Init()

	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	source := songsource.NewDeezerClient(os.Getenv("DEEZER_API_BASE_URL"))
	srv := handlers.NewServer(logger, source)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	server := &http.Server{
		Handler:     srv.Routes(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: websocket connections hijack out of the server's
		// deadline handling, but long-polling fallbacks would not survive one.
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
