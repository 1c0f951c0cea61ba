package upload

type State int

const (
	Idle State = iota
	Validating
	Uploading
	AwaitingTask
	Polling
	Committing
	Done
	Failed
)

var stateNames = [...]string{"idle", "validating", "uploading", "awaiting_task", "polling", "committing", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the run has ended.
func (s State) Terminal() bool { return s == Done || s == Failed }
