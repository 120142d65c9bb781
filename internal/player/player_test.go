package player

import (
	"reflect"
	"testing"

	"scrapecast/internal/media"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"mpv", "mpv"},
		{"vlc", "vlc"},
		{"iina", "iina"},
		{"celluloid", "celluloid"},
		{"unknown", "mpv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.name).Name(); got != tt.want {
				t.Errorf("New(%q).Name() = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

var testLink = media.ResolvedLink{
	URL:     "https://cdn.example/master.m3u8",
	Referer: "https://embed.example/",
	Headers: map[string]string{
		"User-Agent": "UA/1.0",
		"Origin":     "https://embed.example",
		"X-Token":    "a,b",
	},
}

func TestMPVArgs(t *testing.T) {
	got := New("mpv").Args(testLink, "Canal 7", "/tmp/es.vtt")
	want := []string{
		"https://cdn.example/master.m3u8",
		"--force-media-title=Canal 7",
		"--really-quiet",
		"--referrer=https://embed.example/",
		"--user-agent=UA/1.0",
		`--http-header-fields=Origin: https://embed.example,X-Token: a\,b`,
		"--sub-file=/tmp/es.vtt",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args:\n got %q\nwant %q", got, want)
	}
}

func TestMPVArgsBareLink(t *testing.T) {
	got := New("iina").Args(media.ResolvedLink{URL: "https://x.example/v.mp4"}, "t", "")
	want := []string{"https://x.example/v.mp4", "--force-media-title=t", "--really-quiet"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestVLCArgs(t *testing.T) {
	got := New("vlc").Args(testLink, "Canal 7", "")
	want := []string{
		"https://cdn.example/master.m3u8",
		"--meta-title", "Canal 7",
		"--play-and-exit",
		"--http-referrer=https://embed.example/",
		"--http-user-agent=UA/1.0",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args:\n got %q\nwant %q", got, want)
	}
}
