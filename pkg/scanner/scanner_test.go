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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	procs []ProcessInfo
	err   error
}

func (f *fakeSnapshotter) Snapshot() ([]ProcessInfo, error) {
	return f.procs, f.err
}

func reaperProc(pid int32, appID string, args ...string) ProcessInfo {
	env := []string{"HOME=/home/deck", "LANG=en_US.UTF-8"}
	if appID != "" {
		env = append(env, "SteamAppId="+appID)
	}
	return ProcessInfo{
		Name:      "reaper",
		PID:       pid,
		Args:      args,
		Env:       env,
		StartTime: 1700000000,
	}
}

func TestScan_FiltersByLauncherName(t *testing.T) {
	t.Parallel()

	snap := &fakeSnapshotter{procs: []ProcessInfo{
		{Name: "systemd", PID: 1},
		{Name: "steam", PID: 100},
		reaperProc(200, "440", "reaper", "SteamLaunch", "--",
			"/home/deck/.steam/steamapps/common/tf2/hl2.exe"),
		{Name: "bash", PID: 300},
	}}

	games, err := New(snap).Scan()
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, uint32(440), games[0].AppID)
	assert.Equal(t, "/home/deck/.steam/steamapps/common/tf2/hl2.exe", games[0].ExePath)
	assert.Equal(t, int64(1700000000), games[0].RunningSince)
}

func TestScan_LauncherNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	proc := reaperProc(10, "620", "Reaper", "SteamLaunch", "--",
		"/data/steamapps/common/portal2/portal2.exe")
	proc.Name = "Reaper"

	games, err := New(&fakeSnapshotter{procs: []ProcessInfo{proc}}).Scan()
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, uint32(620), games[0].AppID)
}

func TestScan_MissingAppIDYieldsSentinel(t *testing.T) {
	t.Parallel()

	snap := &fakeSnapshotter{procs: []ProcessInfo{
		reaperProc(10, "", "reaper", "--", "/x/steamapps/common/game/game.exe"),
	}}

	games, err := New(snap).Scan()
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, NoAppID, games[0].AppID)
}

func TestScan_UnparsableAppIDYieldsSentinel(t *testing.T) {
	t.Parallel()

	snap := &fakeSnapshotter{procs: []ProcessInfo{
		reaperProc(10, "not-a-number", "reaper", "--", "/x/steamapps/common/game/game.exe"),
	}}

	games, err := New(snap).Scan()
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, NoAppID, games[0].AppID)
}

func TestScan_NoExecutableSkipsProcess(t *testing.T) {
	t.Parallel()

	// A reaper process that isn't wrapping a Proton game has no .exe argument.
	snap := &fakeSnapshotter{procs: []ProcessInfo{
		reaperProc(10, "440", "reaper", "SteamLaunch", "--", "/usr/bin/native-game"),
	}}

	games, err := New(snap).Scan()
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestScan_AmbiguousExecutableSkipsProcess(t *testing.T) {
	t.Parallel()

	snap := &fakeSnapshotter{procs: []ProcessInfo{
		reaperProc(10, "440", "reaper", "--",
			"/x/steamapps/common/a/a.exe",
			"/x/steamapps/common/b/b.exe"),
		reaperProc(20, "620", "reaper", "--",
			"/x/steamapps/common/portal2/portal2.exe"),
	}}

	games, err := New(snap).Scan()
	require.NoError(t, err)
	require.Len(t, games, 1, "ambiguous process must be skipped, scan continues")
	assert.Equal(t, uint32(620), games[0].AppID)
}

func TestScan_PreservesSnapshotOrder(t *testing.T) {
	t.Parallel()

	snap := &fakeSnapshotter{procs: []ProcessInfo{
		reaperProc(10, "440", "reaper", "--", "/x/steamapps/common/tf2/hl2.exe"),
		reaperProc(20, "620", "reaper", "--", "/x/steamapps/common/portal2/portal2.exe"),
	}}

	games, err := New(snap).Scan()
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, uint32(440), games[0].AppID)
	assert.Equal(t, uint32(620), games[1].AppID)
}

func TestScan_SnapshotError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("proc unavailable")
	_, err := New(&fakeSnapshotter{err: wantErr}).Scan()
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestGameExePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		args    []string
		wantErr bool
	}{
		{
			name: "single match",
			args: []string{"reaper", "--", "/x/steamapps/common/g/g.exe"},
			want: "/x/steamapps/common/g/g.exe",
		},
		{
			name: "exe outside steamapps ignored",
			args: []string{"reaper", "--", "/opt/tool.exe"},
			want: "",
		},
		{
			name: "steamapps path without exe suffix ignored",
			args: []string{"reaper", "--", "/x/steamapps/common/g/run.sh"},
			want: "",
		},
		{
			name:    "two matches is ambiguous",
			args:    []string{"/x/steamapps/a.exe", "/x/steamapps/b.exe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := gameExePath(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrAmbiguousExecutable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
