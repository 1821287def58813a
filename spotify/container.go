package spotify

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/meta"
)

// ContainerFromBlob builds the expected-tracks view out of a raw metadata
// blob, either freshly fetched or read back from the .metadata directory.
// Playlist and album blobs carry their tracks under tracks.items, a track
// blob describes itself, and an artist blob yields no expected list.
func ContainerFromBlob(link string, blob []byte) (*meta.Container, error) {
	if !gjson.ValidBytes(blob) {
		return nil, flaw.From(errors.New("metadata blob is not valid JSON"))
	}

	kind := meta.ContainerKind(gjson.GetBytes(blob, "type").String())
	name := gjson.GetBytes(blob, "name").String()
	flawP := flaw.P{"kind": string(kind), "name": name}
	if name == "" {
		return nil, flaw.From(errors.New("metadata blob carries no name")).Append(flawP)
	}

	container := &meta.Container{
		Name:          meta.SanitizeName(name),
		URL:           link,
		Kind:          kind,
		ExpectedCount: 0,
		Tracks:        nil,
	}

	switch kind {
	case meta.KindPlaylist, meta.KindAlbum:
		items := gjson.GetBytes(blob, "tracks.items").Array()
		container.ExpectedCount = len(items)
		container.Tracks = make([]meta.Track, 0, len(items))
		for i, item := range items {
			container.Tracks = append(container.Tracks, trackFromNode(item, i+1))
		}
	case meta.KindTrack:
		container.ExpectedCount = 1
		container.Tracks = []meta.Track{trackFromNode(gjson.ParseBytes(blob), 1)}
	case meta.KindArtist:
		// artist downloads are not positional, there is nothing to expect
	default:
		return nil, flaw.From(fmt.Errorf("unsupported metadata type %q", kind)).Append(flawP)
	}

	return container, nil
}

// trackFromNode reads one expected track. Playlist items nest the track
// object under a "track" key, album items are the track object itself.
func trackFromNode(node gjson.Result, position int) meta.Track {
	if nested := node.Get("track"); nested.Exists() {
		node = nested
	}
	return meta.Track{
		Title:    node.Get("name").String(),
		Artists:  lo.Map(node.Get("artists").Array(), func(a gjson.Result, _ int) string { return a.Get("name").String() }),
		URL:      node.Get("external_urls.spotify").String(),
		Position: position,
	}
}

// ImageURL picks the cover art URL out of a metadata blob. Track blobs
// carry their art on the parent album.
func ImageURL(blob []byte) string {
	if u := gjson.GetBytes(blob, "images.0.url").String(); u != "" {
		return u
	}
	return gjson.GetBytes(blob, "album.images.0.url").String()
}
