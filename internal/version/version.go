// Package version reports build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at link time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// String formats build metadata for the version command. Unstamped builds
// fall back to the module version and VCS settings recorded by the toolchain.
func String() string {
	version, commit, date := Version, Commit, Date
	if info, ok := readBuildInfo(); ok && version == "dev" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			version = v
		}
		for _, setting := range info.Settings {
			switch {
			case setting.Key == "vcs.revision" && commit == "none":
				commit = setting.Value
			case setting.Key == "vcs.time" && date == "unknown":
				date = setting.Value
			}
		}
	}
	return fmt.Sprintf("parley %s (commit=%s, date=%s, go=%s)", version, commit, date, runtime.Version())
}
