package audio

// Metadata is the current-track record for a stream. Station fields are
// seeded from HTTP response headers when a stream is opened; track
// fields arrive from in-band ICY titles and codec-embedded tags.
type Metadata struct {
	Title              string `json:"title,omitempty"`
	Artist             string `json:"artist,omitempty"`
	Album              string `json:"album,omitempty"`
	Genre              string `json:"genre,omitempty"`
	StationName        string `json:"station_name,omitempty"`
	StationGenre       string `json:"station_genre,omitempty"`
	StationDescription string `json:"station_description,omitempty"`
	StationURL         string `json:"station_url,omitempty"`

	// Extra carries metadata keys with no dedicated field, such as
	// StreamUrl from ICY blocks or uncommon tag comments.
	Extra map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether no field is set.
func (m Metadata) IsZero() bool {
	return m.Title == "" && m.Artist == "" && m.Album == "" && m.Genre == "" &&
		m.StationName == "" && m.StationGenre == "" && m.StationDescription == "" &&
		m.StationURL == "" && len(m.Extra) == 0
}

// Merge overlays other on top of m. Only fields other explicitly sets
// (non-empty values, non-empty Extra entries) overwrite; everything
// else keeps its prior value.
func (m *Metadata) Merge(other Metadata) {
	if other.Title != "" {
		m.Title = other.Title
	}
	if other.Artist != "" {
		m.Artist = other.Artist
	}
	if other.Album != "" {
		m.Album = other.Album
	}
	if other.Genre != "" {
		m.Genre = other.Genre
	}
	if other.StationName != "" {
		m.StationName = other.StationName
	}
	if other.StationGenre != "" {
		m.StationGenre = other.StationGenre
	}
	if other.StationDescription != "" {
		m.StationDescription = other.StationDescription
	}
	if other.StationURL != "" {
		m.StationURL = other.StationURL
	}
	for k, v := range other.Extra {
		if v == "" {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[k] = v
	}
}
