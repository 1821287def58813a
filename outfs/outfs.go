// Package outfs maps the names this tool cares about onto the output
// directory layout: one directory per container, plus the hidden
// .metadata, .icons and .errors directories and the run log file.
package outfs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/errutil"
)

const (
	metadataDirName = ".metadata"
	iconsDirName    = ".icons"
	errorsDirName   = ".errors"
	logFileName     = "plsync.log"
)

type Root string

func From(dir string) Root {
	return Root(dir)
}

func (r Root) Path() string {
	return string(r)
}

func (r Root) ContainerDir(name string) string {
	return filepath.Join(r.Path(), name)
}

func (r Root) MetadataDir() string {
	return filepath.Join(r.Path(), metadataDirName)
}

func (r Root) MetadataFile(name string) string {
	return filepath.Join(r.MetadataDir(), name+".json")
}

func (r Root) DescriptionFile(name string) string {
	return filepath.Join(r.MetadataDir(), name+".txt")
}

func (r Root) IconsDir() string {
	return filepath.Join(r.Path(), iconsDirName)
}

func (r Root) IconFile(name string) string {
	return filepath.Join(r.IconsDir(), name+".jpg")
}

func (r Root) ErrorsDir() string {
	return filepath.Join(r.Path(), errorsDirName)
}

// ErrorsFile names the capture file for one external downloader invocation.
func (r Root) ErrorsFile(prefix string, now time.Time) string {
	return filepath.Join(r.ErrorsDir(), fmt.Sprintf("%s-%s.txt", prefix, now.Format("20060102150405")))
}

func (r Root) LogFile() string {
	return filepath.Join(r.Path(), logFileName)
}

// Ensure creates the output directory tree.
func (r Root) Ensure() error {
	for _, dir := range []string{r.Path(), r.MetadataDir(), r.IconsDir(), r.ErrorsDir()} {
		if err := os.MkdirAll(dir, 0o0755); nil != err {
			flawP := flaw.P{"dir": dir, "err_debug_tree": errutil.Tree(err).FlawP()}
			return flaw.From(fmt.Errorf("failed to create directory: %v", err)).Append(flawP)
		}
	}
	return nil
}
