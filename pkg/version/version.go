// Package version reports build information. Version, GitCommit and
// BuildTime are set with -ldflags "-X"; a plain "go build" falls back to the
// VCS stamp embedded by the toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the program name used in version strings.
const Name = "ltcsplit"

var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info is a snapshot of the build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo merges the linker-set variables with the embedded build info.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildSettings(&info, bi.Settings)
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

func fillFromBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
				if len(info.GitCommit) > 12 {
					info.GitCommit = info.GitCommit[:12]
				}
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func (i Info) String() string {
	commit := i.GitCommit
	if i.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s)",
		Name, i.Version, commit, i.BuildTime, i.GoVersion, i.Platform)
}

// Short is the name and version only.
func (i Info) Short() string {
	return Name + " " + i.Version
}
