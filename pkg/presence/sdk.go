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

package presence

import (
	"context"
	"fmt"

	"github.com/hugolgst/rich-go/client"
	"github.com/rs/zerolog/log"
)

// SDKClient is the session-based backend variant, built on the rich-go SDK.
// Its login handshake has no timeout of its own, so Connect bounds it with
// the caller's context. It has no liveness probe: it deliberately does not
// implement ConnectionChecker.
type SDKClient struct {
	clientID string
}

// ConnectSDK logs in to the local Discord client through the SDK. The
// handshake wait is bounded by ctx. An empty client id fails immediately.
func ConnectSDK(ctx context.Context, clientID string) (*SDKClient, error) {
	if clientID == "" {
		return nil, ErrEmptyClientID
	}

	done := make(chan error, 1)
	go func() { done <- client.Login(clientID) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sdk login: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("sdk login: %w", err)
		}
	}

	log.Debug().Msg("connected to discord through sdk")
	return &SDKClient{clientID: clientID}, nil
}

// SetActivity pushes an activity update through the SDK session.
func (*SDKClient) SetActivity(_ context.Context, act Activity) error {
	sdkActivity := client.Activity{
		State:      act.State,
		Details:    act.Details,
		LargeImage: act.LargeImage,
		LargeText:  act.LargeText,
		SmallImage: act.SmallImage,
		SmallText:  act.SmallText,
	}
	if !act.Start.IsZero() {
		start := act.Start
		sdkActivity.Timestamps = &client.Timestamps{Start: &start}
	}

	if err := client.SetActivity(sdkActivity); err != nil {
		return fmt.Errorf("sdk set activity: %w", err)
	}
	return nil
}

// ClearActivity replaces the displayed activity with an empty one. Unlike
// the IPC variant the SDK session stays connected.
func (*SDKClient) ClearActivity(_ context.Context) error {
	if err := client.SetActivity(client.Activity{}); err != nil {
		return fmt.Errorf("sdk clear activity: %w", err)
	}
	return nil
}

// Close logs out of the SDK session.
func (*SDKClient) Close() error {
	client.Logout()
	return nil
}
