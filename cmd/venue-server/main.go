package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/kestrel-exchange/venue/internal/matching"
	"github.com/kestrel-exchange/venue/internal/transport"
)

func main() {
	address := flag.String("address", "0.0.0.0", "address to listen on")
	port := flag.Int("port", 9001, "port to listen on")
	pretty := flag.Bool("pretty", false, "use human-readable console logging instead of JSON")
	flag.Parse()

	var log zerolog.Logger
	if *pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	eng := matching.New(matching.DefaultConfig(), log)
	srv := transport.New(*address, *port, eng, log)

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
