// Package version reports build information and the media engines linked
// into the binary.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/zsiec/avwrap/pkg/engine"
)

// Build information. These variables are set at build time using ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
	OS        = runtime.GOOS
	Arch      = runtime.GOARCH
)

// Info contains version information.
type Info struct {
	Version       string   `json:"version"`
	GitCommit     string   `json:"git_commit"`
	BuildTime     string   `json:"build_time"`
	GoVersion     string   `json:"go_version"`
	OS            string   `json:"os"`
	Arch          string   `json:"arch"`
	CodecEngines  []string `json:"codec_engines"`
	FormatEngines []string `json:"format_engines"`
}

// GetInfo returns the version information, including the engines
// registered at the time of the call.
func GetInfo() Info {
	return Info{
		Version:       Version,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		GoVersion:     GoVersion,
		OS:            OS,
		Arch:          Arch,
		CodecEngines:  engine.Codecs(),
		FormatEngines: engine.Formats(),
	}
}

// String returns the version string.
func (i Info) String() string {
	s := fmt.Sprintf("avwrap %s (commit: %s, built: %s, go: %s, os/arch: %s/%s)",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.OS, i.Arch)
	if len(i.CodecEngines) > 0 || len(i.FormatEngines) > 0 {
		s += fmt.Sprintf(" codecs: [%s] formats: [%s]",
			strings.Join(i.CodecEngines, " "), strings.Join(i.FormatEngines, " "))
	}
	return s
}

// Short returns a short version string.
func (i Info) Short() string {
	return fmt.Sprintf("avwrap %s", i.Version)
}
