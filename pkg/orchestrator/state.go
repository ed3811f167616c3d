package orchestrator

// State is a step of the query pipeline.
type State int

const (
	StatePlanning State = iota
	StateCacheCheckL2
	StateCacheCheckL1
	StateFanout
	StateSynthesize
	StatePersist
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StatePlanning:     "PLANNING",
	StateCacheCheckL2: "CACHE_CHECK_L2",
	StateCacheCheckL1: "CACHE_CHECK_L1",
	StateFanout:       "FANOUT",
	StateSynthesize:   "SYNTHESIZE",
	StatePersist:      "PERSIST",
	StateDone:         "DONE",
	StateFailed:       "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}
