// Package version reports the release and build of the bridge.
//
//nolint:revive
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	// Version is the release shown in /version and the startup message.
	// It can be overridden by ldflags at build time.
	Version = "0.7.0"
	// CommitHash is the git commit hash at build time.
	// It can be overridden by ldflags at build time.
	CommitHash = ""
	// BuildTime is the time when the application was built.
	// It can be overridden by ldflags at build time.
	BuildTime = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build info, falling back to VCS settings embedded by the
// Go toolchain when ldflags were not set.
func Get() Info {
	once.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    CommitHash,
			BuildTime: BuildTime,
			GoVersion: runtime.Version(),
		}
		if info.Commit != "" {
			return
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range bi.Settings {
				switch setting.Key {
				case "vcs.revision":
					info.Commit = setting.Value
				case "vcs.time":
					if info.BuildTime == "" {
						info.BuildTime = setting.Value
					}
				}
			}
		}
	})
	return info
}

// String renders "<version> (<short commit>)".
func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	short := i.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, short)
}

// GetInfo returns Get().String().
func GetInfo() string {
	return Get().String()
}
