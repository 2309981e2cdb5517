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

// Package presence pushes rich presence updates to a locally running Discord
// client. Two backend variants exist with different session models: a raw
// IPC socket client and an SDK-based client. Both satisfy Client; only the
// IPC variant supports a liveness probe, which callers discover through the
// ConnectionChecker interface rather than relying on a no-op stand-in.
package presence

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyClientID is returned by both connect variants before any
// connection attempt when no client id is configured.
var ErrEmptyClientID = errors.New("client id is empty")

// Activity is the rich presence tuple shown to other users. Build a fresh
// one for every update; activities are never partially patched.
type Activity struct {
	State      string
	Details    string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
	Start      time.Time
}

// Client is the capability set shared by both backend variants.
type Client interface {
	// SetActivity replaces the displayed activity.
	SetActivity(ctx context.Context, act Activity) error
	// ClearActivity removes the displayed activity. The IPC variant also
	// closes its connection; the SDK variant stays connected.
	ClearActivity(ctx context.Context) error
	// Close releases the backend session.
	Close() error
}

// ConnectionChecker is the optional liveness probe. Only the IPC variant
// implements it; callers must branch on the assertion instead of assuming
// every client exposes it.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}
