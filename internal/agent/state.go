package agent

// State tracks a chat cycle through its lifecycle. States are logged at
// each transition so a stuck or failed cycle can be located from the
// request id alone.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateRetrieving   State = "RETRIEVING"
	StateComposing    State = "COMPOSING"
	StateGenerating   State = "GENERATING"
	StateToolDispatch State = "TOOL_DISPATCH"
	StateResponded    State = "RESPONDED"
	StatePersisted    State = "PERSISTED"
	StateFailed       State = "FAILED"
)

func (s State) String() string { return string(s) }
