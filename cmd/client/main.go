package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hasirciogluhq/xrelay-proxy/internal/client"
	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadClientFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <host name> <port number>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "The server must run in framed fetch mode; stream mode responses are not framed.")
		fs.PrintDefaults()
	}
	config.BindClientFlags(fs, cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}
	cfg.Host, cfg.Port = fs.Arg(0), fs.Arg(1)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Diagnostics go to stderr so they never mix with downloaded bodies
	logger.Init(logger.Options{Output: os.Stderr})

	fmt.Printf("Connecting to server %s:%s...\n", cfg.Host, cfg.Port)
	conn, err := client.Dial(ctx, cfg.Host, cfg.Port, cfg.DialTimeout)
	if err != nil {
		logger.Debug("Dial failed", "error", err)
		if errors.Is(err, relayerrors.UnknownHost) {
			fmt.Fprintf(os.Stderr, "Don't know about host %s\n", cfg.Host)
		} else {
			fmt.Fprintf(os.Stderr, "Couldn't get I/O for the connection to %s\n", cfg.Host)
		}
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Println("Connected!")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	c := client.New(conn, client.Options{
		Mode:      cfg.Mode,
		OutputDir: cfg.OutputDir,
		Output:    os.Stdout,
	})
	if err := c.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Couldn't get I/O for the connection to %s\n", cfg.Host)
		conn.Close()
		os.Exit(1)
	}
}
