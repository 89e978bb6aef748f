// chatrelay - a line-protocol chat relay server over TCP, with an optional
// WebSocket endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/chat-relay/config"
	"github.com/cyberinferno/chat-relay/history"
	"github.com/cyberinferno/chat-relay/logger"
	"github.com/cyberinferno/chat-relay/relay"
	"github.com/cyberinferno/chat-relay/wstransport"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "chatrelay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(&cfg)

	fs := flag.NewFlagSet("chatrelay", flag.ContinueOnError)
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP listen port")
	fs.IntVar(&cfg.WSPort, "ws-port", cfg.WSPort, "WebSocket listen port (0 disables)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Idle disconnect threshold")
	fs.DurationVar(&cfg.HistoryTTL, "history-ttl", cfg.HistoryTTL, "How long broadcasts stay in HISTORY")
	fs.IntVar(&cfg.HistorySize, "history-size", cfg.HistorySize, "Max broadcasts kept in HISTORY")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log := logger.New(os.Stdout, "chatrelay", level)

	srv := relay.NewServer(relay.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		IdleTimeout: cfg.IdleTimeout,
	}, history.NewLog(cfg.HistoryTTL, cfg.HistorySize), log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return err
		}
		<-gctx.Done()
		srv.Stop()
		return nil
	})

	if cfg.WSPort > 0 {
		ws := wstransport.NewEndpoint(srv, log)
		g.Go(func() error {
			if err := ws.Start(fmt.Sprintf(":%d", cfg.WSPort)); err != nil {
				return err
			}
			<-gctx.Done()
			return ws.Stop()
		})
	}

	return g.Wait()
}
