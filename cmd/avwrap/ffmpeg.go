//go:build ffmpeg

package main

import _ "github.com/zsiec/avwrap/pkg/engine/ffmpeg"
