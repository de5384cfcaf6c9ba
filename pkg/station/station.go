// Package station models internet-radio stations and resolves directory
// entries that point at PLS/M3U playlist files rather than at the stream
// itself.
package station

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Station is one directory entry. URL may point at a playlist file; run
// it through Resolve before connecting.
type Station struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Genre    string `json:"genre,omitempty" yaml:"genre,omitempty"`
	Homepage string `json:"homepage,omitempty" yaml:"homepage,omitempty"`
}

// Resolve fetches url and, if the response is a PLS or M3U playlist,
// returns the first stream URL it lists. A URL that already serves a
// stream is returned unchanged.
func Resolve(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("accept", "*/*")
	req.Header.Add("user-agent", "radiiu/1.0")

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{DialContext: dialer.DialContext}
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")

	// A live stream announces itself with icy headers; no body to parse.
	if resp.Header.Get("icy-metaint") != "" || resp.Header.Get("icy-name") != "" {
		return url, nil
	}
	if isStreamContentType(contentType) {
		return url, nil
	}

	// Playlists are tiny; cap the read so a misdetected stream cannot
	// pin us here.
	bodyData, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	content := string(bodyData)

	isPLS := strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(url, ".pls") ||
		strings.Contains(content, "[playlist]") ||
		strings.Contains(content, "File1=")

	isM3U := strings.Contains(contentType, "audio/mpegurl") ||
		strings.Contains(contentType, "application/vnd.apple.mpegurl") ||
		strings.HasSuffix(url, ".m3u") ||
		strings.HasSuffix(url, ".m3u8") ||
		strings.Contains(content, "#EXTM3U") ||
		(strings.HasPrefix(strings.TrimSpace(content), "http://") || strings.HasPrefix(strings.TrimSpace(content), "https://"))

	if isPLS {
		streamURL, err := parsePLS(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse PLS playlist: %w", err)
		}
		return streamURL, nil
	} else if isM3U {
		streamURL, err := parseM3U(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse M3U playlist: %w", err)
		}
		return streamURL, nil
	}

	return "", fmt.Errorf("URL does not appear to be a stream or playlist (Content-Type: %s)", contentType)
}

func isStreamContentType(ct string) bool {
	switch {
	case strings.HasPrefix(ct, "audio/mpeg"),
		strings.HasPrefix(ct, "audio/aac"),
		strings.HasPrefix(ct, "audio/aacp"),
		strings.HasPrefix(ct, "audio/ogg"),
		strings.HasPrefix(ct, "application/ogg"),
		strings.HasPrefix(ct, "audio/opus"):
		return true
	}
	return false
}

// parsePLS returns the first FileN= URL in a PLS playlist.
func parsePLS(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "File") && strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				url := strings.TrimSpace(parts[1])
				if url != "" {
					return url, nil
				}
			}
		}
	}

	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// parseM3U returns the first non-comment URL line in an M3U playlist.
func parseM3U(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}

	return "", fmt.Errorf("no stream URL found in M3U playlist")
}
