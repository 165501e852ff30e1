// Package version holds build metadata set through -ldflags.
package version

import "runtime/debug"

// Build metadata. Release builds set these with
// -ldflags "-X github.com/Sumatoshi-tech/shorefilter/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// InitBinaryVersion fills Commit and Date from the VCS stamp of the binary
// when they were not set at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = kv.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = kv.Value
			}
		}
	}
}

// String formats the metadata for `shorefilter version`.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
