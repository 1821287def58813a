package spotify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/plsyncd/plsync/meta"
)

var ErrUnknownKind = errors.New("unrecognized spotify resource kind")

// ParseLink extracts the resource kind and identifier from a Spotify web
// URL. Locale path prefixes such as /intl-fr/ are skipped, query parameters
// are ignored.
func ParseLink(link string) (meta.ContainerKind, string, error) {
	u, err := url.Parse(link)
	if nil != err {
		return "", "", fmt.Errorf("failed to parse link %q: %v", link, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		switch segment {
		case "playlist", "album", "artist", "track":
			if i+1 >= len(segments) || segments[i+1] == "" {
				return "", "", fmt.Errorf("link %q carries no %s identifier: %w", link, segment, ErrUnknownKind)
			}
			return meta.ContainerKind(segment), segments[i+1], nil
		}
	}
	return "", "", fmt.Errorf("link %q: %w", link, ErrUnknownKind)
}
