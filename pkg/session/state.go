package session

type State int

const (
	Idle State = iota
	FetchingHistory
	Connecting
	Live
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingHistory:
		return "fetching_history"
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}
