package view

import (
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tracklive/internal/domain"
)

// SetList prints the catalog and the header of the selected set. Valid and
// invalid selections are both marked, so the list always shows what was
// asked for.
type SetList struct {
	Nop

	mu       sync.Mutex
	out      io.Writer
	user     domain.UserID
	base     *url.URL
	clock    clockwork.Clock
	loc      *time.Location
	sets     domain.Catalog
	selected domain.SetID
}

// NewSetList creates a set list. base is the server URL used for the export
// links in the header; nil omits them.
func NewSetList(out io.Writer, user domain.UserID, base *url.URL, clock clockwork.Clock, loc *time.Location) *SetList {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &SetList{out: out, user: user, base: base, clock: clock, loc: loc}
}

// SetCatalog replaces the listed sets.
func (s *SetList) SetCatalog(sets domain.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = sets
}

func (s *SetList) OnValidSet(set domain.SetID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = set
	fmt.Fprintf(s.out, "== %s: %s ==\n", s.user, s.label(set))
	if s.base != nil {
		fmt.Fprintf(s.out, "   csv:  %s\n", s.exportURL(set, true))
		fmt.Fprintf(s.out, "   json: %s\n", s.exportURL(set, false))
	}
}

func (s *SetList) OnInvalidSet(set domain.SetID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = set
	fmt.Fprintf(s.out, "Set not found: %d\n", set)
}

// Render prints the catalog, marking the selected set.
func (s *SetList) Render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sets) == 0 {
		fmt.Fprintf(s.out, "%s has no sets\n", s.user)
		return
	}
	for i, set := range s.sets {
		marker := " "
		if set == s.selected {
			marker = "*"
		}
		suffix := ""
		if i == 0 {
			suffix = " [live]"
		}
		fmt.Fprintf(s.out, "%s %d  %s%s\n", marker, set, s.label(set), suffix)
	}
}

// Selected returns the last set marked, valid or not.
func (s *SetList) Selected() domain.SetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *SetList) label(set domain.SetID) string {
	started := set.Started()
	return fmt.Sprintf("%s (%s)",
		started.In(s.loc).Format(time.DateTime),
		humanize.RelTime(started, s.clock.Now(), "ago", "from now"))
}

func (s *SetList) exportURL(set domain.SetID, csv bool) string {
	u := url.URL{
		Scheme: s.base.Scheme,
		Host:   s.base.Host,
		Path:   fmt.Sprintf("/_trackUpdate/%s/%d", s.user, set),
	}
	if csv {
		u.RawQuery = "download=csv"
	}
	return u.String()
}
