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

// Package scanner detects running Steam games on Linux by looking for
// Steam's "reaper" wrapper processes. Steam wraps every Proton launch in
// a reaper process that carries the game's AppId in its environment and
// the Windows executable path in its command line.
package scanner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// launcherName is the process name of Steam's launch wrapper.
	launcherName = "reaper"

	// appIDEnvPrefix is the environment entry Steam sets on every game it
	// supervises, e.g. "SteamAppId=440".
	appIDEnvPrefix = "SteamAppId="

	gamePathFragment = "steamapps"
	exeSuffix        = ".exe"
)

// NoAppID is the sentinel returned for a launcher process that carries no
// AppId environment entry.
const NoAppID uint32 = 0

// ErrAmbiguousExecutable indicates a launcher process with more than one
// command line argument that looks like a game executable. There is no safe
// way to pick one, so the process is skipped.
var ErrAmbiguousExecutable = errors.New("more than one possible game executable path")

// RunningGame describes one Steam game found running under Proton.
type RunningGame struct {
	// ExePath is the Windows executable path of the game, for diagnostics only.
	ExePath string
	// RunningSince is the process start time in unix seconds.
	RunningSince int64
	// AppID is the Steam App ID, or NoAppID if the process carried none.
	AppID uint32
}

// ProcessInfo is one process from a system snapshot.
type ProcessInfo struct {
	Name      string
	Args      []string
	Env       []string
	StartTime int64
	PID       int32
}

// Snapshotter takes a snapshot of the system process table.
type Snapshotter interface {
	Snapshot() ([]ProcessInfo, error)
}

// Scanner finds running Steam games in a process snapshot.
type Scanner struct {
	snap Snapshotter
}

// New creates a scanner over the given snapshot source.
func New(snap Snapshotter) *Scanner {
	return &Scanner{snap: snap}
}

// Scan takes one process snapshot and returns every Steam game found running
// under Proton. It performs no retries and blocks for at most one snapshot.
//
// Results keep the snapshot's native order. Callers that display a single
// game use the first element; the order is load-bearing for that reason.
//
// A launcher process without a game executable in its arguments is not a
// game and is skipped silently. A process with more than one candidate
// executable is logged and skipped. A missing AppId entry yields NoAppID.
func (s *Scanner) Scan() ([]RunningGame, error) {
	procs, err := s.snap.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot processes: %w", err)
	}

	var games []RunningGame
	for i := range procs {
		proc := &procs[i]

		if !strings.EqualFold(proc.Name, launcherName) {
			continue
		}

		exePath, err := gameExePath(proc.Args)
		if err != nil {
			log.Warn().
				Err(err).
				Int32("pid", proc.PID).
				Msg("skipping launcher process")
			continue
		}
		if exePath == "" {
			// Launcher process not supervising a Proton game.
			continue
		}

		games = append(games, RunningGame{
			AppID:        appIDFromEnv(proc.Env),
			ExePath:      exePath,
			RunningSince: proc.StartTime,
		})
	}

	return games, nil
}

// appIDFromEnv extracts the Steam App ID from a process environment.
// Returns NoAppID if the entry is absent or unparsable.
func appIDFromEnv(env []string) uint32 {
	for _, entry := range env {
		if strings.HasPrefix(entry, appIDEnvPrefix) {
			return parseAppID(strings.TrimPrefix(entry, appIDEnvPrefix))
		}
	}
	return NoAppID
}

func parseAppID(s string) uint32 {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return NoAppID
	}
	return uint32(id)
}

// gameExePath finds the single command line argument that looks like the
// game's Windows executable. Returns "" when there is none, and
// ErrAmbiguousExecutable when there is more than one.
func gameExePath(args []string) (string, error) {
	var found []string
	for _, arg := range args {
		if strings.Contains(arg, gamePathFragment) && strings.HasSuffix(arg, exeSuffix) {
			found = append(found, arg)
		}
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %d candidates", ErrAmbiguousExecutable, len(found))
	}
}
