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

package scanner

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// SystemSnapshotter reads the live process table via gopsutil.
type SystemSnapshotter struct{}

// NewSystem creates a scanner over the live process table.
func NewSystem() *Scanner {
	return New(&SystemSnapshotter{})
}

// Snapshot enumerates all processes. Processes that disappear or deny
// access mid-enumeration are skipped rather than failing the snapshot.
func (*SystemSnapshotter) Snapshot() ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}

		info := ProcessInfo{Name: name, PID: p.Pid}

		// The remaining fields only matter for launcher processes; fetching
		// environ for every process on the system is needlessly expensive.
		if !strings.EqualFold(name, launcherName) {
			infos = append(infos, info)
			continue
		}

		if args, err := p.CmdlineSlice(); err == nil {
			info.Args = args
		}
		if env, err := p.Environ(); err == nil {
			info.Env = env
		}
		if createTime, err := p.CreateTime(); err == nil {
			// gopsutil reports milliseconds since epoch.
			info.StartTime = createTime / 1000
		}

		infos = append(infos, info)
	}

	return infos, nil
}
