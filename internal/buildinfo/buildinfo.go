// Package buildinfo reports the version stamped into the binary with
// -ldflags, falling back to the module's VCS metadata for plain
// `go build` binaries.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set with -ldflags "-X github.com/nugget/jarvis/internal/buildinfo.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var started = time.Now()

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime,omitempty"`
}

// Current returns the build description. Uptime is filled only when
// withUptime is set, so the CLI can print a stable description.
func Current(withUptime bool) Build {
	b := Build{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.GitCommit == "unknown" || b.BuildTime == "unknown" {
		fillFromVCS(&b)
	}
	if withUptime {
		b.Uptime = Uptime().String()
	}
	return b
}

func fillFromVCS(b *Build) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && b.GitCommit == "unknown" && len(s.Value) >= 7:
			b.GitCommit = s.Value[:7]
		case s.Key == "vcs.time" && b.BuildTime == "unknown":
			b.BuildTime = s.Value
		}
	}
}

// Uptime is the time since process start, to the second.
func Uptime() time.Duration {
	return time.Since(started).Truncate(time.Second)
}

// UserAgent is sent on every outbound HTTP request.
func UserAgent() string {
	return "Jarvis/" + Version
}

func String() string {
	b := Current(false)
	return fmt.Sprintf("Jarvis %s (%s) built %s", b.Version, b.GitCommit, b.BuildTime)
}
