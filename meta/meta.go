// Package meta holds the provider-independent data model: what a container
// (playlist, album, artist catalog, single track) is expected to contain
// according to provider metadata.
package meta

import (
	"strings"
	"unicode"
)

type ContainerKind string

const (
	KindPlaylist ContainerKind = "playlist"
	KindAlbum    ContainerKind = "album"
	KindArtist   ContainerKind = "artist"
	KindTrack    ContainerKind = "track"
)

// Track is one expected entry within a container, taken from provider
// metadata. Position is 1-based within the container.
type Track struct {
	Title    string   `json:"title"`
	Artists  []string `json:"artists"`
	URL      string   `json:"url"`
	Position int      `json:"position"`
}

// Container is the unit reconciliation operates on. ExpectedCount always
// comes from provider metadata, never from counting files on disk.
type Container struct {
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Kind          ContainerKind `json:"kind"`
	ExpectedCount int           `json:"expected_count"`
	Tracks        []Track       `json:"tracks"`
}

// SanitizeName reduces a provider-supplied container name to the character
// set used for directory and metadata file names: letters, digits, space,
// hyphen and underscore, with trailing whitespace trimmed.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}
