// Package version exposes the build version reported at startup.
package version

import "runtime/debug"

// Version can be overridden by ldflags at build time.
var Version = "dev"

// String returns the version, with the short VCS revision appended when the
// binary carries build info.
func String() string {
	out := Version
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				rev := setting.Value
				if len(rev) > 7 {
					rev = rev[:7]
				}
				out += " (" + rev + ")"
			}
		}
	}
	return out
}
