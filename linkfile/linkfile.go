// Package linkfile parses the free-text input file into typed provider
// links. A line may carry a markdown-wrapped link or a bare URL anywhere in
// the line. Lines starting with # are comments.
package linkfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/errutil"
	"github.com/plsyncd/plsync/sliceutil"
)

type Provider string

const (
	ProviderSoundCloud Provider = "soundcloud"
	ProviderYouTube    Provider = "youtube"
	ProviderSpotify    Provider = "spotify"
)

// Order is the fixed sequence providers are matched and later processed in.
var Order = []Provider{ProviderSoundCloud, ProviderYouTube, ProviderSpotify}

type Link struct {
	URL      string
	Provider Provider
}

// Links keeps the original file order with duplicates preserved, alongside
// per-provider partitions.
type Links struct {
	All []Link
}

func (l Links) Of(p Provider) []string {
	matched := lo.Filter(l.All, func(link Link, _ int) bool { return link.Provider == p })
	return sliceutil.Map(matched, func(link Link) string { return link.URL })
}

func (l Links) Len() int {
	return len(l.All)
}

var providerPatterns = []struct {
	provider Provider
	markdown *regexp.Regexp
	bare     *regexp.Regexp
}{
	{
		provider: ProviderSoundCloud,
		markdown: regexp.MustCompile(`\((https?://(?:www\.)?soundcloud\.com/[^\s)\]]+)\)`),
		bare:     regexp.MustCompile(`https?://(?:www\.)?soundcloud\.com/[^\s)\]]+`),
	},
	{
		provider: ProviderYouTube,
		markdown: regexp.MustCompile(`\((https?://(?:www\.)?(?:youtube\.com|youtu\.be)/[^\s)\]]+)\)`),
		bare:     regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com|youtu\.be)/[^\s)\]]+`),
	},
	{
		provider: ProviderSpotify,
		markdown: regexp.MustCompile(`\((https?://(?:open\.)?spotify\.com/[^\s)\]]+)\)`),
		bare:     regexp.MustCompile(`https?://(?:open\.)?spotify\.com/[^\s)\]]+`),
	},
}

// ParseLine extracts at most one link from a raw input line. Comment,
// blank and unrecognizable lines yield ok=false. Providers are checked in
// Order, markdown syntax wins over a bare URL within one provider.
func ParseLine(raw string) (Link, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return Link{}, false
	}

	for _, p := range providerPatterns {
		if m := p.markdown.FindStringSubmatch(line); nil != m {
			return Link{URL: m[1], Provider: p.provider}, true
		}
		if m := p.bare.FindString(line); m != "" {
			return Link{URL: m, Provider: p.provider}, true
		}
	}
	return Link{}, false
}

func Parse(r io.Reader) (Links, error) {
	var links Links
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if link, ok := ParseLine(scanner.Text()); ok {
			links.All = append(links.All, link)
		}
	}
	if err := scanner.Err(); nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return Links{}, flaw.From(fmt.Errorf("failed to scan input: %v", err)).Append(flawP)
	}
	return links, nil
}

func ParseFile(path string) (Links, error) {
	f, err := os.Open(path)
	if nil != err {
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return Links{}, flaw.From(fmt.Errorf("failed to open input file: %v", err)).Append(flawP)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}
