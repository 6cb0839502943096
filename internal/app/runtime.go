package app

import (
	"os"
	"runtime/debug"
	"strconv"
)

// TestModeEnv, when true, makes the binaries return before dialing anything.
const TestModeEnv = "QUOTEDESK_TEST_MODE"

// InTestMode reports whether the binaries should skip runtime side effects.
func InTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
}

// Version returns the module version and VCS revision baked into the binary.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	version := info.Main.Version
	if version == "" {
		version = "(devel)"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			version += "+" + s.Value[:7]
		}
	}
	return version
}
