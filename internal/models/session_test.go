package models

import "testing"

func TestProcessingInputPrefersVideo(t *testing.T) {
	files := Files{
		Audio: &MediaFile{Path: "/u/audio-1.webm"},
		Video: &MediaFile{Path: "/u/video-1.webm"},
	}
	kind, f := files.ProcessingInput()
	if kind != FileTypeVideo || f.Path != "/u/video-1.webm" {
		t.Fatalf("ProcessingInput() = %q %+v, want video", kind, f)
	}
}

func TestProcessingInputFallsBackToAudio(t *testing.T) {
	files := Files{Audio: &MediaFile{Path: "/u/audio-1.webm"}, Video: &MediaFile{}}
	kind, f := files.ProcessingInput()
	if kind != FileTypeAudio || f.Path != "/u/audio-1.webm" {
		t.Fatalf("ProcessingInput() = %q %+v, want audio", kind, f)
	}
}

func TestProcessingInputNone(t *testing.T) {
	kind, f := Files{}.ProcessingInput()
	if kind != "" || f != nil {
		t.Fatalf("ProcessingInput() = %q %+v, want none", kind, f)
	}
}

func TestFilesGet(t *testing.T) {
	files := Files{Audio: &MediaFile{Path: "a"}}
	if files.Get(FileTypeAudio) == nil {
		t.Error("expected audio file")
	}
	if files.Get(FileTypeVideo) != nil {
		t.Error("expected no video file")
	}
	if files.Get("slides") != nil {
		t.Error("unknown file type should be nil")
	}
}
