// Package buildinfo holds version and build metadata stamped at
// compile time via ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns a one-line summary suitable for startup logging.
func String() string {
	return fmt.Sprintf("lmstudio-go %s (%s) built %s, %s", Version, GitCommit, BuildTime, runtime.Version())
}

// UserAgent returns the identifying string sent as the User-Agent
// header of the websocket dial.
func UserAgent() string {
	return fmt.Sprintf("lmstudio-go/%s", Version)
}
