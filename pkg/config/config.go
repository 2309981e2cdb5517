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

// Package config loads and validates the daemon's configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

const (
	// AppName names the per-application directories under the XDG base dirs.
	AppName = "proton-presence"
	// CfgFile is the configuration file name.
	CfgFile = "config.json"
	// LogFile is the rotating log file name.
	LogFile = "proton-presence.log"
)

// Backend variants selectable through the config file.
const (
	BackendIPC = "ipc"
	BackendSDK = "sdk"
)

// Values is the parsed configuration.
type Values struct {
	// DiscordClientID is the application id registered with Discord.
	// Required; validated before anything connects.
	DiscordClientID string `json:"discord_client_id" validate:"required"`
	// Backend selects the presence client variant. Defaults to ipc.
	Backend string `json:"backend,omitempty" validate:"omitempty,oneof=ipc sdk"`
	// CacheDir overrides the store page cache root. Defaults to the XDG
	// runtime directory.
	CacheDir string `json:"cache_dir,omitempty"`
}

// DefaultPath is the config location used when no explicit path is given or
// the given one does not exist: <config home>/proton-presence/config.json.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, CfgFile)
}

// Load reads the config file at path, falling back to DefaultPath when path
// is empty or names a file that does not exist. The result is validated;
// an empty discord_client_id is rejected here, before any backend or
// network use.
func Load(fs afero.Fs, path string) (*Values, error) {
	if path != "" {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return nil, fmt.Errorf("check config file %q: %w", path, err)
		}
		if !exists {
			path = ""
		}
	}
	if path == "" {
		path = DefaultPath()
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	var vals Values
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	if vals.Backend == "" {
		vals.Backend = BackendIPC
	}

	if err := vals.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}

	return &vals, nil
}

// Validate checks the configuration on a functional level.
func (v *Values) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
