// Package version reports build information for the libradesk binaries.
//
// Release builds set Version, GitCommit and BuildDate with -ldflags "-X".
// Other builds fall back to the VCS stamps the Go toolchain records.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Build is the resolved build metadata.
type Build struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"git_commit" yaml:"git_commit"`
	Date     string `json:"build_date" yaml:"build_date"`
	Modified bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	Go       string `json:"go_version" yaml:"go_version"`
	Platform string `json:"platform" yaml:"platform"`
}

var (
	once     sync.Once
	resolved Build
)

// Current returns the build metadata, reading the embedded VCS stamps once.
func Current() Build {
	once.Do(func() { resolved = resolve(Version, GitCommit, BuildDate, readSettings()) })
	return resolved
}

func readSettings() map[string]string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	m := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		m[s.Key] = s.Value
	}
	return m
}

func resolve(ver, commit, date string, vcs map[string]string) Build {
	b := Build{
		Version:  ver,
		Commit:   commit,
		Date:     date,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.Commit == "" {
		b.Commit = vcs["vcs.revision"]
		b.Modified = vcs["vcs.modified"] == "true"
	}
	if len(b.Commit) > 12 {
		b.Commit = b.Commit[:12]
	}
	if b.Date == "" {
		b.Date = vcs["vcs.time"]
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}

// Info returns a one-line description for `libradesk version`.
func Info() string {
	b := Current()
	commit := b.Commit
	if b.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("LibraDesk %s (commit %s, built %s, %s %s)",
		b.Version, commit, b.Date, b.Go, b.Platform)
}

func Short() string { return Current().Version }

// UserAgent is sent on every API request.
func UserAgent() string {
	return "libradesk/" + Current().Version + " (" + runtime.GOOS + ")"
}

// Map returns the build metadata as string pairs for structured output.
func Map() map[string]string {
	b := Current()
	return map[string]string{
		"version":    b.Version,
		"git_commit": b.Commit,
		"build_date": b.Date,
		"go_version": b.Go,
		"platform":   b.Platform,
		"modified":   fmt.Sprint(b.Modified),
	}
}
