package util

import (
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "hello", limit: 50, want: "hello"},
		{in: "hello world", limit: 5, want: "hello..."},
		{in: "你好世界", limit: 2, want: "你好..."},
		{in: "abc", limit: 0, want: "abc"},
	}
	for _, tc := range tests {
		if got := Truncate(tc.in, tc.limit); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestAttachmentTypeFromMime(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"image/png":       "image",
		"audio/mpeg":      "audio",
		"video/mp4":       "video",
		"application/pdf": "file",
	}
	for mime, want := range cases {
		if got := AttachmentTypeFromMime(mime); got != want {
			t.Errorf("AttachmentTypeFromMime(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestDedup(t *testing.T) {
	t.Parallel()
	got := Dedup([]uint64{3, 1, 3, 2, 1})
	if want := []uint64{3, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedup = %v, want %v", got, want)
	}
}
