//go:build linux

// Proton Presence
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Proton Presence.
//
// Proton Presence is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Proton Presence is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Proton Presence.  If not, see <http://www.gnu.org/licenses/>.

// Proton Presence mirrors the Steam game currently running under Proton as
// Discord Rich Presence.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ZaparooProject/proton-presence/pkg/config"
	"github.com/ZaparooProject/proton-presence/pkg/helpers"
	"github.com/ZaparooProject/proton-presence/pkg/presence"
	"github.com/ZaparooProject/proton-presence/pkg/scanner"
	"github.com/ZaparooProject/proton-presence/pkg/service"
	"github.com/ZaparooProject/proton-presence/pkg/storepage"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(afero.NewOsFs(), *configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logDir := filepath.Join(xdg.StateHome, config.AppName)
	if err := helpers.InitLogging(logDir, []io.Writer{os.Stderr}); err != nil {
		return fmt.Errorf("error setting up logging: %w", err)
	}
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().
		Str("clientID", cfg.DiscordClientID).
		Str("backend", cfg.Backend).
		Msg("starting proton-presence")

	resolver, err := storepage.New(storepage.Config{CacheRoot: cfg.CacheDir})
	if err != nil {
		return fmt.Errorf("error setting up store page cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx, service.Deps{
			Scanner:  scanner.NewSystem(),
			Resolver: resolver,
			Connect:  connectFunc(cfg),
		})
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("monitor loop failed")
		}
	}

	// Releasing the resolver persists the cookie jar.
	if err := resolver.Close(); err != nil {
		log.Warn().Err(err).Msg("error persisting cookie jar")
	}

	return nil
}

func connectFunc(cfg *config.Values) service.ConnectFunc {
	if cfg.Backend == config.BackendSDK {
		return func(ctx context.Context) (presence.Client, error) {
			client, err := presence.ConnectSDK(ctx, cfg.DiscordClientID)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	return func(ctx context.Context) (presence.Client, error) {
		client, err := presence.ConnectIPC(ctx, cfg.DiscordClientID)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
