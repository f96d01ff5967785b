package media

import (
	"mime"
	"path/filepath"
	"strings"
)

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// IsAudioFile reports whether name has an accepted audio extension.
func IsAudioFile(name string) bool {
	_, ok := audioTypes[ext(name)]
	return ok
}

// IsVideoFile reports whether name has an accepted video extension.
func IsVideoFile(name string) bool {
	_, ok := videoTypes[ext(name)]
	return ok
}

// TypeByExtension returns the media type for name, preferring video for containers that
// carry both (webm). Unknown extensions fall back to the system mime table, then "".
func TypeByExtension(name string) string {
	e := ext(name)
	if t, ok := videoTypes[e]; ok {
		return t
	}
	if t, ok := audioTypes[e]; ok {
		return t
	}
	return mime.TypeByExtension(e)
}

func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
