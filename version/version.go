// Package version reports build metadata for the orx binary.
package version

import (
	"fmt"
	"runtime"

	"github.com/teranos/orx/catalog"
)

// Build information, set at build time via ldflags.
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info is what `orx version` prints.
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	// CatalogFormat is the catalog format constraint this build accepts.
	CatalogFormat string `json:"catalog_format"`
}

// Get returns the running binary's build information.
func Get() Info {
	return Info{
		CommitHash:    CommitHash,
		BuildTime:     BuildTime,
		Version:       Version,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		CatalogFormat: catalog.SupportedFormat,
	}
}

func (i Info) String() string {
	commit := i.CommitHash
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("orx %s (commit %s, built %s, catalog format %s)", i.Version, commit, i.BuildTime, i.CatalogFormat)
}
