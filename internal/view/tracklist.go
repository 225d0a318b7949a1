package view

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/pscheid92/tracklive/internal/domain"
)

// TrackList prints the tracks of the selected set as a table. A bulk load
// reprints the table from scratch; live updates append one row each.
type TrackList struct {
	mu      sync.Mutex
	out     io.Writer
	loc     *time.Location
	lastIdx int32
	seen    bool
	rows    int
}

func NewTrackList(out io.Writer, loc *time.Location) *TrackList {
	if loc == nil {
		loc = time.Local
	}
	return &TrackList{out: out, loc: loc}
}

func (l *TrackList) OnValidSet(domain.SetID)   {}
func (l *TrackList) OnInvalidSet(domain.SetID) {}

func (l *TrackList) OnTracksLoaded(updates []domain.TrackUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seen = false
	l.rows = 0

	tw := tabwriter.NewWriter(l.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tARTIST\tTITLE\tWHEN\tDECK")
	for _, u := range updates {
		l.writeRow(tw, u)
	}
	_ = tw.Flush()
}

// OnNewTrack appends update unless it repeats the last index shown.
func (l *TrackList) OnNewTrack(update domain.TrackUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tw := tabwriter.NewWriter(l.out, 0, 4, 2, ' ', 0)
	l.writeRow(tw, update)
	_ = tw.Flush()
}

// Rows returns how many rows are shown for the current set.
func (l *TrackList) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

func (l *TrackList) writeRow(w io.Writer, u domain.TrackUpdate) {
	if l.seen && u.Index == l.lastIdx {
		return
	}
	when := time.Unix(u.When, 0).In(l.loc).Format(time.TimeOnly)
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.Index, u.Track.Artist, u.Track.Title, when, deckOrBlank(u.DeckID))
	l.lastIdx = u.Index
	l.seen = true
	l.rows++
}
