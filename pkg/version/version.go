// Package version reports the corpusrank build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/Aman-CERP/corpusrank/pkg/version.Version=...".
// Commit and Date fall back to the VCS stamp the go tool embeds.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// BuildInfo is the payload of `corpusrank version --json`.
type BuildInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// GetInfo resolves the build metadata.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:  Version,
		Commit:   Commit,
		Date:     Date,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "":
				info.Commit = shortRevision(s.Value)
			case s.Key == "vcs.time" && info.Date == "":
				info.Date = s.Value
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
}

// String is the plain `corpusrank version` line.
func String() string {
	i := GetInfo()
	return fmt.Sprintf("corpusrank %s (%s, %s) %s %s", i.Version, i.Commit, i.Date, i.Go, i.Platform)
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
