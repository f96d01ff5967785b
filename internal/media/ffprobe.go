package media

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ProbeResult is the subset of ffprobe JSON output the pipeline reads.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

func parseProbe(raw string) (ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return ProbeResult{}, err
	}
	return result, nil
}

// DurationSeconds returns the container duration, falling back to the longest stream.
// Zero means unknown.
func (r ProbeResult) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	var longest float64
	for _, s := range r.Streams {
		if d := parseFloat(s.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

// HasVideo reports whether any video stream is present.
func (r ProbeResult) HasVideo() bool {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return true
		}
	}
	return false
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
