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
	"context"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatedPage = `<html><body>
<div id="agegate_box">Please enter your birth date to continue</div>
</body></html>`

func TestIsAgeGated(t *testing.T) {
	t.Parallel()

	assert.True(t, isAgeGated([]byte(gatedPage)))
	assert.True(t, isAgeGated([]byte(`<form id="view_product_page_form">`)))
	assert.False(t, isAgeGated([]byte(realPage)))
}

func TestFetchPage_AgeGateConfirmsAndCachesFinalPage(t *testing.T) {
	t.Parallel()

	var gets, confirms atomic.Int32
	var confirmed atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/app/570/", func(w http.ResponseWriter, _ *http.Request) {
		gets.Add(1)
		if confirmed.Load() {
			_, _ = w.Write([]byte(realPage))
			return
		}
		_, _ = w.Write([]byte(gatedPage))
	})
	mux.HandleFunc("/agecheckset/app/570/", func(w http.ResponseWriter, r *http.Request) {
		confirms.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "sess-1", r.PostForm.Get("sessionid"))
		assert.Equal(t, "1", r.PostForm.Get("ageDay"))
		assert.Equal(t, "January", r.PostForm.Get("ageMonth"))
		assert.Equal(t, "1900", r.PostForm.Get("ageYear"))
		confirmed.Store(true)
		w.WriteHeader(http.StatusOK)
	})

	resolver, srv := newTestResolver(t, mux)
	seedSessionCookie(t, resolver, srv.URL)

	pageURL := srv.URL + "/app/570/"
	page, err := resolver.FetchPage(context.Background(), pageURL)
	require.NoError(t, err)
	assert.Equal(t, []byte(realPage), page)
	assert.Equal(t, int32(1), confirms.Load())
	assert.Equal(t, int32(2), gets.Load(), "one gated fetch, one re-fetch")

	// The cached copy must be the final page, served with no further requests.
	again, err := resolver.FetchPage(context.Background(), pageURL)
	require.NoError(t, err)
	assert.Equal(t, []byte(realPage), again)
	assert.Equal(t, int32(2), gets.Load())
}

func TestFetchPage_AgeGateWithoutSessionCookie(t *testing.T) {
	t.Parallel()

	var gets atomic.Int32
	resolver, srv := newTestResolver(t, http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			gets.Add(1)
			_, _ = w.Write([]byte(gatedPage))
		}))

	pageURL := srv.URL + "/app/570/"
	_, err := resolver.FetchPage(context.Background(), pageURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSessionCookie)

	// The interstitial must never be cached: a retry hits the network again.
	_, err = resolver.FetchPage(context.Background(), pageURL)
	require.Error(t, err)
	assert.Equal(t, int32(2), gets.Load())
}

func TestFetchPage_StillGatedAfterConfirmation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/app/570/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(gatedPage))
	})
	mux.HandleFunc("/agecheckset/app/570/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	resolver, srv := newTestResolver(t, mux)
	seedSessionCookie(t, resolver, srv.URL)

	_, err := resolver.FetchPage(context.Background(), srv.URL+"/app/570/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still age gated")
}

func seedSessionCookie(t *testing.T, resolver *Resolver, serverURL string) {
	t.Helper()

	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	resolver.jar.SetCookies(u, []*http.Cookie{{
		Name:    sessionCookieName,
		Value:   "sess-1",
		Path:    "/",
		Expires: time.Now().Add(time.Hour),
	}})
}
