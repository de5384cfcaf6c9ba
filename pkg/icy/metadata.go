// Package icy handles the Icecast/SHOUTcast in-band metadata protocol:
// splitting the raw stream into clean audio plus metadata blocks at the
// server-declared interval, and parsing the Key='value'; blocks those
// metadata payloads contain.
package icy

import (
	"strings"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

// ParseBlock parses an ICY metadata payload of the form
//
//	StreamTitle='...';StreamUrl='...';
//
// The whole block is NUL-padded to a multiple of 16 bytes on the wire;
// trailing NULs are stripped. Each field picks its quote character ('
// or ") from whatever follows '='. Values may contain the quote
// character itself, so a quote only terminates a value when it is
// followed by nothing but padding, or by ';' and then padding or the
// start of another Key=<quote> field. Parsing is best effort: on input
// where no valid field start or terminator can be found, the pairs
// accumulated so far are returned.
func ParseBlock(block []byte) map[string]string {
	s := strings.TrimRight(string(block), "\x00")
	out := make(map[string]string)

	i := 0
	for i < len(s) {
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[i : i+eq])
		qpos := i + eq + 1
		if key == "" || qpos >= len(s) {
			break
		}
		quote := s[qpos]
		if quote != '\'' && quote != '"' {
			break
		}

		vstart := qpos + 1
		vend := findTerminator(s, vstart, quote)
		if vend < 0 {
			break
		}
		out[key] = s[vstart:vend]

		i = vend + 1
		if i < len(s) && s[i] == ';' {
			i++
		}
	}

	return out
}

// findTerminator returns the index of the quote that ends the value
// starting at vstart, or -1. The first syntactically valid terminator
// wins, which keeps titles containing the quote character intact.
func findTerminator(s string, vstart int, quote byte) int {
	for j := vstart; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		if restIsBlank(s, j+1) {
			return j
		}
		if s[j+1] != ';' {
			continue
		}
		if restIsBlank(s, j+2) || fieldStartsAt(s, j+2) {
			return j
		}
	}
	return -1
}

// restIsBlank reports whether s[k:] holds only block padding (spaces
// or stray NULs).
func restIsBlank(s string, k int) bool {
	for ; k < len(s); k++ {
		if s[k] != ' ' && s[k] != '\x00' {
			return false
		}
	}
	return true
}

// fieldStartsAt reports whether s[k:] begins with a Key=<quote> pattern.
func fieldStartsAt(s string, k int) bool {
	m := k
	for m < len(s) && s[m] != '=' && s[m] != ';' && s[m] != '\'' && s[m] != '"' {
		m++
	}
	if m == k || m >= len(s) || s[m] != '=' {
		return false
	}
	return m+1 < len(s) && (s[m+1] == '\'' || s[m+1] == '"')
}

// BlockMetadata converts parsed block values into stream metadata. The
// StreamTitle key becomes the track title; every other key is kept in
// the extra map.
func BlockMetadata(values map[string]string) audio.Metadata {
	var m audio.Metadata
	for k, v := range values {
		if k == "StreamTitle" {
			m.Title = v
			continue
		}
		if v == "" {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[k] = v
	}
	return m
}

// HeadersMetadata seeds station metadata from ICY response headers.
// get is typically http.Header.Get or the transport's Header method.
func HeadersMetadata(get func(name string) string) audio.Metadata {
	return audio.Metadata{
		StationName:        get("icy-name"),
		StationGenre:       get("icy-genre"),
		StationDescription: get("icy-description"),
		StationURL:         get("icy-url"),
	}
}
