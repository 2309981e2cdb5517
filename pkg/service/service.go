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

// Package service runs the synchronization loop: poll the scanner, diff the
// running game against what Discord currently displays, and push updates.
//
// The loop's one recovery rule is to forget the displayed id on any failure.
// Re-setting the same activity is always safe; assuming a failed update
// silently succeeded is not, so every failure path converges by retrying
// from scratch on the next tick.
package service

import (
	"context"
	"time"

	"github.com/ZaparooProject/proton-presence/pkg/presence"
	"github.com/ZaparooProject/proton-presence/pkg/scanner"
	"github.com/ZaparooProject/proton-presence/pkg/storepage"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPollInterval is the steady-state scan cadence.
	DefaultPollInterval = 10 * time.Second
	// DefaultRetryInterval is the fixed backoff after connection failures.
	DefaultRetryInterval = 60 * time.Second

	stateText = "Playing on Linux using Proton"
)

// GameScanner finds running games. Implemented by scanner.Scanner.
type GameScanner interface {
	Scan() ([]scanner.RunningGame, error)
}

// MetadataResolver turns store page URLs into display metadata.
// Implemented by storepage.Resolver.
type MetadataResolver interface {
	GetTitle(ctx context.Context, pageURL string) (string, error)
	GetIconURL(ctx context.Context, pageURL string) (string, error)
}

// ConnectFunc establishes a presence backend connection.
type ConnectFunc func(ctx context.Context) (presence.Client, error)

// Deps are the loop's collaborators. Scanner, Resolver and Connect are
// required; the rest default.
type Deps struct {
	Clock         clockwork.Clock
	Scanner       GameScanner
	Resolver      MetadataResolver
	Connect       ConnectFunc
	PollInterval  time.Duration
	RetryInterval time.Duration
}

// Run executes the synchronization loop until ctx is cancelled. On
// cancellation it makes one best-effort attempt to clear the displayed
// activity before returning. Run never fails permanently: connection loss
// of any kind is retried forever with a fixed backoff.
func Run(ctx context.Context, deps Deps) error {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.PollInterval == 0 {
		deps.PollInterval = DefaultPollInterval
	}
	if deps.RetryInterval == 0 {
		deps.RetryInterval = DefaultRetryInterval
	}

	client, ok := awaitConnection(ctx, deps)
	if !ok {
		// Cancelled before a backend ever appeared; nothing to clear.
		return nil
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing presence client")
		}
	}()

	log.Info().Msg("connected to presence backend, monitoring for games")

	displayed := scanner.NoAppID
	for {
		if checker, isChecker := client.(presence.ConnectionChecker); isChecker {
			if err := checker.CheckConnection(ctx); err != nil {
				log.Warn().
					Err(err).
					Dur("retryIn", deps.RetryInterval).
					Msg("presence connection check failed")
				displayed = scanner.NoAppID
				if !sleepOrDone(ctx, deps.Clock, deps.RetryInterval) {
					shutdownClear(client)
					return nil
				}
				continue
			}
		}

		games, err := deps.Scanner.Scan()
		if err != nil {
			// A failed snapshot says nothing about the game's state, so the
			// displayed id is kept; the next tick scans again.
			log.Error().Err(err).Msg("error scanning for running games")
		} else {
			displayed = processTick(ctx, deps.Resolver, client, games, displayed)
		}

		if !sleepOrDone(ctx, deps.Clock, deps.PollInterval) {
			shutdownClear(client)
			return nil
		}
	}
}

// awaitConnection retries Connect with a fixed backoff until it succeeds or
// ctx is cancelled. It never gives up on its own.
func awaitConnection(ctx context.Context, deps Deps) (presence.Client, bool) {
	for {
		client, err := deps.Connect(ctx)
		if err == nil {
			return client, true
		}

		log.Warn().
			Err(err).
			Dur("retryIn", deps.RetryInterval).
			Msg("could not connect to presence backend")

		if !sleepOrDone(ctx, deps.Clock, deps.RetryInterval) {
			return nil, false
		}
	}
}

// processTick reconciles one scan result against the displayed id and
// returns the new displayed id. Only the first running game is honored.
func processTick(
	ctx context.Context,
	resolver MetadataResolver,
	client presence.Client,
	games []scanner.RunningGame,
	displayed uint32,
) uint32 {
	if len(games) == 0 {
		if displayed == scanner.NoAppID {
			return displayed
		}

		log.Info().Uint32("appID", displayed).Msg("game no longer running, clearing activity")
		if err := client.ClearActivity(ctx); err != nil {
			// Forget the id regardless: retrying a clear for a game that is
			// gone would wedge the loop in a permanent "needs clearing" state.
			log.Error().Err(err).Msg("error clearing activity")
		}
		return scanner.NoAppID
	}

	game := games[0]
	if game.AppID == displayed {
		return displayed
	}

	title, err := resolver.GetTitle(ctx, storepage.StoreURL(game.AppID))
	if err != nil {
		log.Error().Err(err).Uint32("appID", game.AppID).Msg("error resolving game title")
		return scanner.NoAppID
	}
	iconURL, err := resolver.GetIconURL(ctx, storepage.StoreURL(game.AppID))
	if err != nil {
		log.Error().Err(err).Uint32("appID", game.AppID).Msg("error resolving game icon")
		return scanner.NoAppID
	}

	log.Info().
		Uint32("appID", game.AppID).
		Str("title", title).
		Str("exe", game.ExePath).
		Msg("found running game, setting activity")

	err = client.SetActivity(ctx, presence.Activity{
		State:      stateText,
		Details:    title,
		LargeImage: storepage.PosterURL(game.AppID),
		LargeText:  title,
		SmallImage: iconURL,
		SmallText:  title,
		Start:      time.Unix(game.RunningSince, 0),
	})
	if err != nil {
		log.Error().Err(err).Uint32("appID", game.AppID).Msg("error setting activity")
		return scanner.NoAppID
	}

	return game.AppID
}

// shutdownClear makes the final best-effort activity clear during shutdown.
// The loop's context is already done, so a short independent deadline bounds
// the attempt.
func shutdownClear(client presence.Client) {
	log.Info().Msg("shutting down, clearing activity")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.ClearActivity(ctx); err != nil {
		log.Warn().Err(err).Msg("error clearing activity on shutdown")
	}
}

// sleepOrDone waits for the duration or for cancellation, whichever comes
// first, preferring cancellation so shutdown is observed promptly even when
// both are ready. Returns false when cancelled.
func sleepOrDone(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
