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

import "fmt"

// StoreURL returns the public store page URL for an app.
func StoreURL(appID uint32) string {
	return fmt.Sprintf("https://store.steampowered.com/app/%d/", appID)
}

// PosterURL returns the library poster image URL for an app.
func PosterURL(appID uint32) string {
	return fmt.Sprintf(
		"https://cdn.cloudflare.steamstatic.com/steam/apps/%d/library_600x900_x2.jpg",
		appID)
}

// SteamDBURL returns the SteamDB page URL for an app. Diagnostic only.
func SteamDBURL(appID uint32) string {
	return fmt.Sprintf("https://steamdb.info/app/%d/", appID)
}
