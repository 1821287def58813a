// Package cache keeps fetched container metadata around for the duration of
// a run, so an input file listing the same link twice costs one metadata
// fetch.
package cache

import (
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/plsyncd/plsync/meta"
)

var DefaultContainerTTL = 1 * time.Hour

// Entry pairs the parsed container with the raw provider metadata blob the
// adapter persists to disk.
type Entry struct {
	Container *meta.Container
	Blob      []byte
}

type Containers struct {
	c   *ccache.Cache[*Entry]
	mux sync.Mutex
}

func NewContainers() *Containers {
	return &Containers{
		c: ccache.New(
			ccache.Configure[*Entry]().
				MaxSize(1000).
				GetsPerPromote(3).
				ItemsToPrune(1),
		),
		mux: sync.Mutex{},
	}
}

func (c *Containers) Fetch(k string, ttl time.Duration, fetch func() (*Entry, error)) (*Entry, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	item, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, err
	}
	return item.Value(), nil
}
