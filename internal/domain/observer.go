package domain

// Observer receives the outcomes of set selection and live updates.
// Implementations render them; the controller never calls them concurrently.
type Observer interface {
	OnValidSet(set SetID)
	OnInvalidSet(set SetID)
	// OnTracksLoaded replaces everything shown for the selected set.
	OnTracksLoaded(updates []TrackUpdate)
	OnNewTrack(update TrackUpdate)
}
