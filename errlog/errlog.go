// Package errlog turns the free-text failure log written by the external
// downloader into structured failure records. Recognized lines look like
//
//	<track-url> - <failure description>
//
// and anything not starting with the canonical track URL prefix is treated
// as log noise and skipped.
package errlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/errutil"
)

type Category string

const (
	// CategoryLookupNotFound means the downloader could not find any source
	// matching the track metadata.
	CategoryLookupNotFound Category = "lookup_not_found"
	// CategoryMetadataKey is a known brittle upstream metadata field lookup
	// failure.
	CategoryMetadataKey Category = "metadata_key_error"
	// CategoryAudioBackend means the underlying audio-fetch backend failed
	// on a concrete source URL.
	CategoryAudioBackend Category = "audio_backend_error"
	// CategoryUnrecognized preserves failure text that matched no known
	// marker. No cause is guessed for it.
	CategoryUnrecognized Category = "unrecognized"
)

const (
	trackURLPrefix     = "https://open.spotify.com/track/"
	lookupMarker       = " - LookupError: No results found for song: "
	metadataKeyMarker  = " - KeyError: 'webCommandMetadata'"
	audioBackendMarker = " - AudioProviderError: YT-DLP download error - "
)

// FailureRecord is one structured failure extracted from the log.
type FailureRecord struct {
	TrackURL string
	Category Category
	// Title and Artists are populated for lookup failures only.
	Title   string
	Artists []string
	// FallbackURL is populated for audio backend failures only. It is
	// informational, nothing retries it.
	FallbackURL string
	// Raw carries the unclassified description for unrecognized failures.
	Raw string
}

// ParseLine classifies a single log line. ok is false for blank lines and
// lines not starting with the track URL prefix.
func ParseLine(raw string) (FailureRecord, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || !strings.HasPrefix(line, trackURLPrefix) {
		return FailureRecord{}, false
	}

	if before, after, found := strings.Cut(line, lookupMarker); found {
		rec := FailureRecord{
			TrackURL: strings.TrimSpace(before),
			Category: CategoryLookupNotFound,
		}
		if idx := strings.LastIndex(after, " - "); idx >= 0 {
			rec.Title = strings.TrimSpace(after[idx+len(" - "):])
			rec.Artists = lo.Map(strings.Split(after[:idx], ","), func(a string, _ int) string { return strings.TrimSpace(a) })
		} else {
			rec.Title = strings.TrimSpace(after)
		}
		return rec, true
	}

	if before, _, found := strings.Cut(line, metadataKeyMarker); found {
		return FailureRecord{
			TrackURL: strings.TrimSpace(before),
			Category: CategoryMetadataKey,
		}, true
	}

	if before, after, found := strings.Cut(line, audioBackendMarker); found {
		return FailureRecord{
			TrackURL:    strings.TrimSpace(before),
			Category:    CategoryAudioBackend,
			FallbackURL: strings.TrimSpace(after),
		}, true
	}

	rec := FailureRecord{Category: CategoryUnrecognized, Raw: line}
	if before, after, found := strings.Cut(line, " - "); found {
		rec.TrackURL = strings.TrimSpace(before)
		rec.Raw = strings.TrimSpace(after)
	} else {
		rec.TrackURL = line
		rec.Raw = ""
	}
	return rec, true
}

func Parse(r io.Reader) ([]FailureRecord, error) {
	var records []FailureRecord
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if rec, ok := ParseLine(scanner.Text()); ok {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to scan error log: %v", err)).Append(flawP)
	}
	return records, nil
}

// ParseFile reads a downloader error log. A missing or unreadable file
// yields zero records and an error the caller logs without aborting.
func ParseFile(path string) ([]FailureRecord, error) {
	f, err := os.Open(path)
	if nil != err {
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to open error log file: %v", err)).Append(flawP)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}
