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

// Package storepage resolves a Steam App ID to a display title and icon by
// scraping the game's store page. Pages are cached on disk forever (a cached
// page is authoritative and never re-fetched), and the HTTP session carries a
// cookie jar persisted across runs so that age-gated pages stay accessible.
package storepage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/adrg/xdg"
	cookiejar "github.com/juju/persistent-cookiejar"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	appName      = "proton-presence"
	cacheDirName = "cache"
	cookiesFile  = "cookies.json"

	titleSelector = "#appHubAppName"
	iconSelector  = "div.apphub_AppIcon img"
)

var (
	// ErrNotFound indicates the page contained no matching element.
	ErrNotFound = errors.New("no matching element on page")
	// ErrAmbiguous indicates the page contained more than one matching element.
	ErrAmbiguous = errors.New("more than one matching element on page")
	// ErrInvalidURL indicates a URL without a numeric app id path segment.
	ErrInvalidURL = errors.New("no app id segment in url")
)

// defaultTransport mirrors the settings used for all outbound HTTP in this
// project: pooled connections with bounded dial and header timeouts.
var defaultTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ResponseHeaderTimeout: 30 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
}

// Config controls resolver construction. The zero value uses the OS
// filesystem, the XDG runtime directory and a default HTTP client.
type Config struct {
	// Fs is the filesystem used for the page cache. Defaults to the OS
	// filesystem.
	Fs afero.Fs
	// HTTPClient performs store requests. Its cookie jar is replaced with
	// the resolver's persisted jar. Defaults to a pooled client.
	HTTPClient *http.Client
	// CacheRoot is the directory the cache hierarchy is created under. It
	// must already exist. Defaults to the XDG runtime directory.
	CacheRoot string
}

// Resolver maps store page URLs to titles and icon URLs.
//
// A Resolver owns the persisted cookie jar for its lifetime: the jar is
// loaded once at construction and saved once by Close. Construct one at
// startup and pass it to everything that needs metadata.
type Resolver struct {
	fs       afero.Fs
	client   *http.Client
	jar      *cookiejar.Jar
	cacheDir string
	closed   bool
}

// New creates a resolver, ensuring the cache directory hierarchy exists and
// loading the persisted cookie jar. The configured cache root must already
// exist as a directory; failure to resolve or create the cache hierarchy is
// fatal.
func New(cfg Config) (*Resolver, error) {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	root := cfg.CacheRoot
	if root == "" {
		root = xdg.RuntimeDir
	}
	if root == "" {
		return nil, errors.New("no cache root configured and no runtime directory available")
	}

	isDir, err := afero.DirExists(fs, root)
	if err != nil {
		return nil, fmt.Errorf("check cache root %q: %w", root, err)
	}
	if !isDir {
		return nil, fmt.Errorf("cache root %q is not a directory", root)
	}

	cacheDir := filepath.Join(root, appName, cacheDirName)
	if filepath.Base(root) == appName {
		cacheDir = filepath.Join(root, cacheDirName)
	}
	if err := fs.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %q: %w", cacheDir, err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{
		Filename: filepath.Join(cacheDir, cookiesFile),
	})
	if err != nil {
		return nil, fmt.Errorf("load cookie jar: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: defaultTransport}
	}
	client.Jar = jar

	return &Resolver{
		fs:       fs,
		client:   client,
		jar:      jar,
		cacheDir: cacheDir,
	}, nil
}

// Close persists the cookie jar. Best-effort with no retry; newly acquired
// cookies are lost on abnormal termination by design. Idempotent.
func (r *Resolver) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.jar.Save(); err != nil {
		return fmt.Errorf("save cookie jar: %w", err)
	}
	return nil
}

// GetTitle extracts the game title from the store page at the given URL.
func (r *Resolver) GetTitle(ctx context.Context, pageURL string) (string, error) {
	doc, err := r.document(ctx, pageURL)
	if err != nil {
		return "", err
	}

	sel := doc.Find(titleSelector)
	switch sel.Length() {
	case 0:
		return "", fmt.Errorf("title %q: %w", pageURL, ErrNotFound)
	case 1:
		return strings.TrimSpace(sel.Text()), nil
	default:
		return "", fmt.Errorf("title %q: %w", pageURL, ErrAmbiguous)
	}
}

// GetIconURL extracts the game's icon image URL from the store page at the
// given URL.
func (r *Resolver) GetIconURL(ctx context.Context, pageURL string) (string, error) {
	doc, err := r.document(ctx, pageURL)
	if err != nil {
		return "", err
	}

	sel := doc.Find(iconSelector)
	switch sel.Length() {
	case 0:
		return "", fmt.Errorf("icon %q: %w", pageURL, ErrNotFound)
	case 1:
		src, ok := sel.Attr("src")
		if !ok {
			return "", fmt.Errorf("icon %q has no src attribute: %w", pageURL, ErrNotFound)
		}
		return src, nil
	default:
		return "", fmt.Errorf("icon %q: %w", pageURL, ErrAmbiguous)
	}
}

func (r *Resolver) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	page, err := r.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page %q: %w", pageURL, err)
	}
	return doc, nil
}

// FetchPage returns the store page document for the given URL. A cache file
// for the URL's app id is authoritative: if it exists its content is
// returned without any network access. Otherwise the page is fetched through
// the cookie-bearing session, run through the age-gate flow if necessary,
// and the final document is written through to the cache.
func (r *Resolver) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	cachePath, err := r.cachePath(pageURL)
	if err != nil {
		return nil, err
	}

	cached, err := afero.Exists(r.fs, cachePath)
	if err != nil {
		return nil, fmt.Errorf("check cache file %q: %w", cachePath, err)
	}
	if cached {
		page, err := afero.ReadFile(r.fs, cachePath)
		if err != nil {
			return nil, fmt.Errorf("read cache file %q: %w", cachePath, err)
		}
		return page, nil
	}

	page, err := r.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if isAgeGated(page) {
		log.Info().Str("url", pageURL).Msg("store page is age gated, confirming")
		page, err = r.bypassAgeGate(ctx, pageURL)
		if err != nil {
			return nil, err
		}
	}

	if err := afero.WriteFile(r.fs, cachePath, page, 0o640); err != nil {
		return nil, fmt.Errorf("write cache file %q: %w", cachePath, err)
	}

	return page, nil
}

func (r *Resolver) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request for %q: %w", pageURL, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", pageURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %q: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %q: %w", pageURL, err)
	}
	return body, nil
}

// cachePath derives the cache file for a store page URL from its first
// numeric path segment: https://store.steampowered.com/app/440/ caches to
// <cacheDir>/440.html.
func (r *Resolver) cachePath(pageURL string) (string, error) {
	appID, err := appIDFromURL(pageURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.cacheDir, strconv.FormatInt(appID, 10)+".html"), nil
}

func appIDFromURL(pageURL string) (int64, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return 0, fmt.Errorf("parse url %q: %w", pageURL, err)
	}

	for _, segment := range strings.Split(parsed.Path, "/") {
		if id, err := strconv.ParseInt(segment, 10, 64); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", pageURL, ErrInvalidURL)
}
