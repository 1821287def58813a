// Package reconcile compares what provider metadata says a container should
// hold against the numbered files the download stage actually produced, and
// reports the gaps.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/errutil"
	"github.com/plsyncd/plsync/meta"
)

// Expected is the metadata side of the diff. Count always comes from
// provider metadata. Tracks may be shorter than Count when the provider
// returned partial track data.
type Expected struct {
	Name   string
	Count  int
	Tracks []meta.Track
}

func ExpectedFromContainer(c *meta.Container) Expected {
	return Expected{
		Name:   c.Name,
		Count:  c.ExpectedCount,
		Tracks: c.Tracks,
	}
}

// MissingRecord is a reconciliation finding: an expected position with no
// corresponding numbered file on disk. Position is zero padded to the width
// observed among existing files.
type MissingRecord struct {
	Container string
	Position  string
	Tag       string
	Title     string
	Artists   []string
	URL       string
}

// Result distinguishes a verified container (Determined, possibly with an
// empty Missing list) from one that could not be checked because no file
// carried a parseable leading number.
type Result struct {
	Determined bool
	Padding    int
	Missing    []MissingRecord
}

// Complete reports a determined reconciliation with no gaps.
func (r Result) Complete() bool {
	return r.Determined && len(r.Missing) == 0
}

var leadingNumber = regexp.MustCompile(`^\s*(\d+)`)

// ParseLeadingNumber extracts the position prefix of a filename stem,
// returning the parsed integer and the count of digits consumed.
func ParseLeadingNumber(stem string) (n int, digits int, ok bool) {
	m := leadingNumber.FindStringSubmatch(stem)
	if nil == m {
		return 0, 0, false
	}
	parsed, err := strconv.Atoi(m[1])
	if nil != err {
		return 0, 0, false
	}
	return parsed, len(m[1]), true
}

// Check scans the immediate children of dir and diffs their position
// prefixes against [1, exp.Count]. Files whose extension is not in exts or
// whose stem carries no leading number are ignored. Extra or duplicate
// numbers are not flagged, only gaps are.
func Check(dir string, exp Expected, exts []string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Determined: false}, nil
		}
		flawP := flaw.P{"dir": dir, "err_debug_tree": errutil.Tree(err).FlawP()}
		return Result{}, flaw.From(fmt.Errorf("failed to read container directory: %v", err)).Append(flawP)
	}

	present := make(map[int]struct{})
	padding := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !slices.Contains(exts, ext) {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		n, digits, ok := ParseLeadingNumber(stem)
		if !ok {
			continue
		}
		present[n] = struct{}{}
		padding = max(padding, digits)
	}

	if len(present) == 0 {
		// Nothing numbered on disk. This is "cannot verify", not "all
		// missing": the directory may hold unprocessed content.
		return Result{Determined: false}, nil
	}

	result := Result{Determined: true, Padding: padding}
	for n := 1; n <= exp.Count; n++ {
		if _, ok := present[n]; ok {
			continue
		}
		padded := fmt.Sprintf("%0*d", padding, n)
		rec := MissingRecord{
			Container: exp.Name,
			Position:  padded,
			Tag:       fmt.Sprintf("Missing %s", padded),
		}
		if idx := n - 1; idx < len(exp.Tracks) {
			track := exp.Tracks[idx]
			rec.Title = track.Title
			rec.Artists = track.Artists
			rec.URL = track.URL
		}
		result.Missing = append(result.Missing, rec)
	}
	return result, nil
}
