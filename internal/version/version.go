// Package version reports build metadata for logs, metrics and /-/version.
package version

import "runtime/debug"

const AppName = "httpfilters"

// Set with -ldflags "-X github.com/keithlinneman/httpfilters/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

type Info struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	// Dirty is "true", "false" or "unknown" when the build carried no VCS data.
	Dirty string `json:"vcs_dirty"`
}

// Get merges the linker-provided values with what the Go toolchain
// embedded. Linker values win.
func Get() Info {
	out := Info{App: AppName, Version: Version, Commit: Commit, BuildDate: BuildDate, Dirty: "unknown"}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	return fromBuildInfo(out, bi)
}

func fromBuildInfo(out Info, bi *debug.BuildInfo) Info {
	out.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		if s.Value == "" {
			continue
		}
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.BuildDate == "" {
				out.BuildDate = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" || s.Value == "false" {
				out.Dirty = s.Value
			}
		}
	}
	return out
}
