package selfupdate

import "fmt"

// State is a step of the self-update state machine.
type State int32

const (
	StateIdle State = iota
	StateCheckingUpdate
	StateUpdateFound
	StateNoUpdate
	StateDownloading
	StateDownloaded
	StateHandoffPrepared
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateCheckingUpdate:  "checking-update",
	StateUpdateFound:     "update-found",
	StateNoUpdate:        "no-update",
	StateDownloading:     "downloading",
	StateDownloaded:      "downloaded",
	StateHandoffPrepared: "handoff-prepared",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}
