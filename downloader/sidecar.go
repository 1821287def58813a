package downloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/config"
	"github.com/plsyncd/plsync/errutil"
	"github.com/plsyncd/plsync/outfs"
	"github.com/plsyncd/plsync/reconcile"
)

const infoSuffix = ".info.json"

// sidecarReconciler covers the providers whose metadata arrives as
// downloader sidecar files next to the audio instead of an API response.
// It folds the sidecars of each container into one persisted metadata file
// and diffs the container against the playlist count found there.
type sidecarReconciler struct {
	out    outfs.Root
	cfg    *config.Config
	logger zerolog.Logger
}

// reconcileAll walks the container directories. With a non-empty name it
// checks that one container only.
func (s sidecarReconciler) reconcileAll(name string) ([]Outcome, error) {
	s.dropRootSidecars()

	entries, err := os.ReadDir(s.out.Path())
	if nil != err {
		flawP := flaw.P{"dir": s.out.Path(), "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to read output directory: %v", err)).Append(flawP)
	}

	var outcomes []Outcome
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if name != "" && entry.Name() != name {
			continue
		}
		outcome, ok, err := s.reconcileContainer(entry.Name())
		if nil != err {
			return nil, err
		}
		if ok {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes, nil
}

func (s sidecarReconciler) reconcileContainer(name string) (Outcome, bool, error) {
	dir := s.out.ContainerDir(name)
	folded, err := s.foldSidecars(name, dir)
	if nil != err {
		return Outcome{}, false, err
	}

	blob, err := os.ReadFile(s.out.MetadataFile(name))
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return Outcome{}, false, nil
		}
		flawP := flaw.P{"container": name, "err_debug_tree": errutil.Tree(err).FlawP()}
		return Outcome{}, false, flaw.From(fmt.Errorf("failed to read persisted metadata: %v", err)).Append(flawP)
	}
	if !folded && !gjson.GetBytes(blob, "songs").Exists() {
		// metadata persisted by a different provider, not ours to verify
		return Outcome{}, false, nil
	}

	count := int(gjson.GetBytes(blob, "playlist_count").Int())
	if count == 0 {
		count = len(gjson.GetBytes(blob, "songs").Array()) + 1
	}

	res, err := reconcile.Check(dir, reconcile.Expected{Name: name, Count: count, Tracks: nil}, s.cfg.AudioExts)
	if nil != err {
		return Outcome{}, false, err
	}
	return Outcome{Container: name, Result: res}, true, nil
}

// foldSidecars merges a container's info sidecars into one metadata file:
// the first becomes the container metadata, the rest land in its "songs"
// array, and the sidecars themselves are removed. The container description
// file moves alongside it.
func (s sidecarReconciler) foldSidecars(name, dir string) (bool, error) {
	infoFiles, err := filepath.Glob(filepath.Join(dir, "*"+infoSuffix))
	if nil != err {
		flawP := flaw.P{"dir": dir, "err_debug_tree": errutil.Tree(err).FlawP()}
		return false, flaw.From(fmt.Errorf("failed to list sidecar files: %v", err)).Append(flawP)
	}
	if len(infoFiles) == 0 {
		return false, s.moveDescription(name, dir)
	}
	sort.Strings(infoFiles)
	flawP := flaw.P{"container": name, "sidecars": infoFiles}

	// The container-level sidecar is the one carrying the playlist count.
	// Fall back to the first file when none does.
	headFile := infoFiles[0]
	for _, infoFile := range infoFiles {
		b, readErr := os.ReadFile(infoFile)
		if nil == readErr && gjson.GetBytes(b, "playlist_count").Exists() {
			headFile = infoFile
			break
		}
	}

	head := make(map[string]any)
	headBytes, err := os.ReadFile(headFile)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return false, flaw.From(fmt.Errorf("failed to read sidecar file: %v", err)).Append(flawP)
	}
	if err := json.Unmarshal(headBytes, &head); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return false, flaw.From(fmt.Errorf("failed to decode sidecar file: %v", err)).Append(flawP)
	}

	songs := make([]any, 0, len(infoFiles)-1)
	for _, infoFile := range infoFiles {
		if infoFile == headFile {
			continue
		}
		songBytes, err := os.ReadFile(infoFile)
		if nil != err {
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return false, flaw.From(fmt.Errorf("failed to read sidecar file: %v", err)).Append(flawP)
		}
		var song map[string]any
		if err := json.Unmarshal(songBytes, &song); nil != err {
			s.logger.Warn().Str("path", infoFile).Msg("Skipping malformed sidecar file")
			continue
		}
		songs = append(songs, song)
	}
	head["songs"] = songs

	merged, err := json.MarshalIndent(head, "", "  ")
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return false, flaw.From(fmt.Errorf("failed to encode merged metadata: %v", err)).Append(flawP)
	}
	metadataFile := s.out.MetadataFile(name)
	if err := os.WriteFile(metadataFile, merged, 0o0644); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return false, flaw.From(fmt.Errorf("failed to write merged metadata: %v", err)).Append(flawP)
	}

	for _, infoFile := range infoFiles {
		if err := os.Remove(infoFile); nil != err {
			s.logger.Warn().Err(err).Str("path", infoFile).Msg("Failed to remove sidecar file")
		}
	}
	return true, s.moveDescription(name, dir)
}

func (s sidecarReconciler) moveDescription(name, dir string) error {
	descFiles, err := filepath.Glob(filepath.Join(dir, "*.description"))
	if nil != err {
		flawP := flaw.P{"dir": dir, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to list description files: %v", err)).Append(flawP)
	}
	if len(descFiles) == 0 {
		return nil
	}
	sort.Strings(descFiles)
	if err := os.Rename(descFiles[0], s.out.DescriptionFile(name)); nil != err {
		s.logger.Warn().Err(err).Str("path", descFiles[0]).Msg("Failed to move description file")
	}
	for _, descFile := range descFiles[1:] {
		if err := os.Remove(descFile); nil != err {
			s.logger.Warn().Err(err).Str("path", descFile).Msg("Failed to remove extra description file")
		}
	}
	return nil
}

// dropRootSidecars removes stray info sidecars the downloader left at the
// output root, outside any container directory.
func (s sidecarReconciler) dropRootSidecars() {
	strays, err := filepath.Glob(filepath.Join(s.out.Path(), "*"+infoSuffix))
	if nil != err {
		s.logger.Warn().Err(err).Msg("Failed to list stray sidecar files")
		return
	}
	for _, stray := range strays {
		if err := os.Remove(stray); nil != err {
			s.logger.Warn().Err(err).Str("path", stray).Msg("Failed to remove stray sidecar file")
		}
	}
}
