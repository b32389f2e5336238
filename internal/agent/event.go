package agent

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evText
	evGreet
	evTeardown
	evTranscribed
	evDelta
	evModelDone
	evSpoken
)

func (k eventKind) String() string {
	switch k {
	case evStart:
		return "start"
	case evStop:
		return "stop"
	case evText:
		return "text"
	case evGreet:
		return "greet"
	case evTeardown:
		return "teardown"
	case evTranscribed:
		return "transcribed"
	case evDelta:
		return "delta"
	case evModelDone:
		return "model_done"
	case evSpoken:
		return "spoken"
	default:
		return "unknown"
	}
}

// event is either a command from the presentation layer or a result from a worker.
// Results carry the epoch of the operation that produced them.
type event struct {
	kind  eventKind
	epoch uint64
	text  string
	err   error
}
