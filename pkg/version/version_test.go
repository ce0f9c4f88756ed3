package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/zsiec/avwrap/pkg/engine/rtpdump"
	_ "github.com/zsiec/avwrap/pkg/engine/soft"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.OS+"/"+info.Arch)
	assert.Contains(t, info.CodecEngines, "soft")
	assert.Contains(t, info.FormatEngines, "rtpdump")
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "1.0.0",
		GitCommit: "abc123",
		BuildTime: "2024-01-01",
		GoVersion: "go1.23",
		OS:        "linux",
		Arch:      "amd64",
	}
	assert.Equal(t, "avwrap 1.0.0 (commit: abc123, built: 2024-01-01, go: go1.23, os/arch: linux/amd64)", info.String())
	assert.Equal(t, "avwrap 1.0.0", info.Short())

	info.CodecEngines = []string{"ffmpeg", "soft"}
	info.FormatEngines = []string{"rtpdump"}
	assert.Contains(t, info.String(), "codecs: [ffmpeg soft] formats: [rtpdump]")
}

func TestInfoJSON(t *testing.T) {
	data, err := json.Marshal(Info{Version: "dev", CodecEngines: []string{"soft"}})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "dev", m["version"])
	assert.Equal(t, []interface{}{"soft"}, m["codec_engines"])
	assert.Nil(t, m["format_engines"])
}
