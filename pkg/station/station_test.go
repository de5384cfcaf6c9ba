package station

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePLS(t *testing.T) {
	playlist := `[playlist]
NumberOfEntries=2
File1=http://stream.example.com:8000/live
Title1=Example Radio
File2=http://backup.example.com:8000/live
Version=2
`
	url, err := parsePLS(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("parsePLS: %v", err)
	}
	if url != "http://stream.example.com:8000/live" {
		t.Errorf("got %q", url)
	}
}

func TestParsePLSEmpty(t *testing.T) {
	if _, err := parsePLS(strings.NewReader("[playlist]\nNumberOfEntries=0\n")); err == nil {
		t.Fatal("expected error for playlist without entries")
	}
}

func TestParseM3U(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:-1,Example Radio
http://stream.example.com:8000/live
`
	url, err := parseM3U(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("parseM3U: %v", err)
	}
	if url != "http://stream.example.com:8000/live" {
		t.Errorf("got %q", url)
	}
}

func TestParseM3UCommentsOnly(t *testing.T) {
	if _, err := parseM3U(strings.NewReader("#EXTM3U\n#EXTINF:-1,nothing\n")); err == nil {
		t.Fatal("expected error for playlist without URLs")
	}
}

func TestResolvePlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-scpls")
		w.Write([]byte("[playlist]\nFile1=http://resolved.example.com/stream\n"))
	}))
	defer srv.Close()

	url, err := Resolve(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if url != "http://resolved.example.com/stream" {
		t.Errorf("got %q", url)
	}
}

func TestResolveDirectStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-metaint", "16000")
		w.Write([]byte{0xFF, 0xFB, 0x90, 0x00})
	}))
	defer srv.Close()

	url, err := Resolve(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if url != srv.URL {
		t.Errorf("direct stream URL should be unchanged, got %q", url)
	}
}
