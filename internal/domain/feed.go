package domain

// FeedState is the lifecycle state of the real-time feed.
type FeedState int

const (
	FeedClosed FeedState = iota
	FeedConnecting
	FeedOpen
)

func (s FeedState) String() string {
	switch s {
	case FeedClosed:
		return "closed"
	case FeedConnecting:
		return "connecting"
	case FeedOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Feed is a real-time track update connection. Open and Close are idempotent.
type Feed interface {
	Open()
	Close()
	State() FeedState
}
