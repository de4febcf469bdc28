// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Program farcalld runs the execution service. It serves the built-in file,
// command, and diagnostic operations to remote controllers, and optionally a
// legacy HTTP call surface alongside the native listener.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/taskgroup"
	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/bridge"
	"github.com/farcall/farcall/config"
	"github.com/farcall/farcall/remote"
)

var opts struct {
	Listen  string        `flag:"listen,default=127.0.0.1:50051,Service listen address"`
	Legacy  string        `flag:"legacy,Legacy HTTP listen address (disabled if empty)"`
	Config  string        `flag:"config,Path of an optional settings file"`
	Workers int           `flag:"workers,default=10,Worker pool size for offloaded calls"`
	Grace   time.Duration `flag:"grace,default=5s,Shutdown grace period for in-flight calls"`
}

func main() {
	root := &command.C{
		Name:     filepath.Base(os.Args[0]),
		Usage:    "[options]",
		Help:     "Serve call targets to remote controllers.",
		SetFlags: command.Flags(flax.MustBind, &opts),
		Run:      runService,
		Commands: []*command.C{
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

func runService(env *command.Env) error {
	settings := config.New()
	if opts.Config != "" {
		if err := settings.LoadFile(opts.Config); err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
	}
	log := initLogger(settings.LogLevel())

	// Reload the settings file when it changes on disk. Values read from the
	// settings snapshot after a reload reflect the new contents.
	if opts.Config != "" {
		w, err := config.Watch(opts.Config, log, func() {
			if err := settings.LoadFile(opts.Config); err != nil {
				log.Warn().Err(err).Msg("reloading settings")
			} else {
				log.Info().Str("path", opts.Config).Msg("settings reloaded")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("settings watch unavailable")
		} else {
			defer w.Stop()
		}
	}

	// The daemon serves only the built-in operations. Applications that need
	// application-defined targets embed the server with their own registry.
	reg := farcall.NewRegistry()

	srv := remote.NewServer(reg, remote.ServerOptions{
		Config:    settings.Snapshot,
		Logger:    log.With().Str("component", "service").Logger(),
		Workers:   opts.Workers,
		Grace:     opts.Grace,
		TLSCert:   settings.TLSCert(),
		TLSKey:    settings.TLSKey(),
		TLSRootCA: settings.TLSRootCA(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lst, err := srv.Listen(opts.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Str("addr", lst.Addr().String()).Msg("service listening")

	g := taskgroup.New(nil)
	g.Go(func() error { return srv.Serve(ctx, lst) })

	if opts.Legacy != "" {
		hs := &http.Server{
			Addr:    opts.Legacy,
			Handler: bridge.NewRFCHandler(reg, settings.RFCPassword(), log.With().Str("component", "legacy").Logger()),
		}
		log.Info().Str("addr", opts.Legacy).Msg("legacy surface listening")
		g.Go(func() error {
			if err := hs.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), opts.Grace)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("service stopped")
	return err
}

func initLogger(level string) zerolog.Logger {
	lv, err := zerolog.ParseLevel(level)
	if err != nil || lv == zerolog.NoLevel {
		lv = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(lv).With().Timestamp().Str("app", "farcalld").Logger()
}
