package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.24.11",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	got := fromBuildInfo(Info{App: AppName, Dirty: "unknown"}, bi)
	if got.Commit != "abc123" || got.BuildDate != "2026-01-02T03:04:05Z" {
		t.Fatalf("got %+v", got)
	}
	if got.Dirty != "true" || got.GoVersion != "go1.24.11" {
		t.Fatalf("got %+v", got)
	}
}

func TestFromBuildInfo_LinkerValuesWin(t *testing.T) {
	bi := &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "from-vcs"},
		{Key: "vcs.modified", Value: "maybe"},
	}}

	got := fromBuildInfo(Info{Commit: "from-ldflags", Dirty: "unknown"}, bi)
	if got.Commit != "from-ldflags" {
		t.Fatalf("Commit = %q", got.Commit)
	}
	if got.Dirty != "unknown" {
		t.Fatalf("Dirty = %q, want unknown for an unrecognized value", got.Dirty)
	}
}

func TestGet_App(t *testing.T) {
	if Get().App != AppName {
		t.Fatal("Get should report AppName")
	}
}
