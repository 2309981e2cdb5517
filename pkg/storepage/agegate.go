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

package storepage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNoSessionCookie indicates an age-gated page was encountered without a
// store session cookie in the jar. The resolver can only continue a session
// the site has already started; it cannot bootstrap one.
var ErrNoSessionCookie = errors.New("age gated page but no session cookie present")

const sessionCookieName = "sessionid"

// Markers that identify the age verification interstitial rather than a
// real store page.
var ageGateMarkers = [][]byte{
	[]byte("agegate_box"),
	[]byte("view_product_page_form"),
}

func isAgeGated(page []byte) bool {
	for _, marker := range ageGateMarkers {
		if bytes.Contains(page, marker) {
			return true
		}
	}
	return false
}

// bypassAgeGate confirms the age check for the app behind pageURL and
// re-fetches the page once. The confirmation response itself is not the real
// page, so only the re-fetched document is returned; a page that is still
// gated after confirmation is an error and must not be cached.
func (r *Resolver) bypassAgeGate(ctx context.Context, pageURL string) ([]byte, error) {
	appID, err := appIDFromURL(pageURL)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", pageURL, err)
	}

	session := r.sessionCookie(parsed)
	if session == "" {
		return nil, fmt.Errorf("%q: %w", pageURL, ErrNoSessionCookie)
	}

	// The birth date is a fixed placeholder; the site only cares that one
	// was submitted with a valid session.
	form := url.Values{
		"sessionid": {session},
		"ageDay":    {"1"},
		"ageMonth":  {"January"},
		"ageYear":   {"1900"},
	}

	confirmURL := fmt.Sprintf("%s://%s/agecheckset/app/%d/", parsed.Scheme, parsed.Host, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, confirmURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create age confirmation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post age confirmation for app %d: %w", appID, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("age confirmation for app %d: unexpected status %d",
			appID, resp.StatusCode)
	}

	page, err := r.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if isAgeGated(page) {
		return nil, fmt.Errorf("app %d still age gated after confirmation", appID)
	}

	log.Info().Int64("appID", appID).Msg("age gate confirmed")
	return page, nil
}

// sessionCookie returns the value of the store session cookie for the given
// URL, or "" if the jar holds none.
func (r *Resolver) sessionCookie(u *url.URL) string {
	for _, cookie := range r.jar.Cookies(u) {
		if cookie.Name == sessionCookieName {
			return cookie.Value
		}
	}
	return ""
}
