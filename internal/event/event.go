// Package event implements the per-track event list: an arena of events
// linked into an insertion-ordered primary list plus a parent/first-child/
// next-sibling tree, following the "cyclic graph -> arena + indices" design
// note.
package event

// Type is the closed set of event kinds the scheduler understands.
type Type int

const (
	TypeRecord Type = iota
	TypeRecordStop
	TypePlay
	TypeJumpPlay
	TypeReversePlay
	TypeMultiply
	TypeMultiplyEnd
	TypeInsert
	TypeInsertEnd
	TypeOverdub
	TypeReplace
	TypeSubstitute
	TypeMute
	TypeMove
	TypeSlip
	TypeSpeed
	TypeRate
	TypeRealign
	TypeReturn
	TypeSwitch
	TypeStartPoint
	TypeTrack
	TypeScript
	TypeSync
	TypeLoopBoundary
	TypeCycleBoundary
	TypeSubcycleBoundary
	TypeValidate
	TypeInvoke
)

func (t Type) String() string {
	names := [...]string{
		"Record", "RecordStop", "Play", "JumpPlay", "ReversePlay", "Multiply",
		"MultiplyEnd", "Insert", "InsertEnd", "Overdub", "Replace",
		"Substitute", "Mute", "Move", "Slip", "Speed", "Rate", "Realign",
		"Return", "Switch", "StartPoint", "Track", "Script", "Sync",
		"LoopBoundary", "CycleBoundary", "SubcycleBoundary", "Validate",
		"Invoke",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// reschedules is the set of mode-ending event types that defer later events
// behind them (spec §4.6 "Rescheduling").
var reschedules = map[Type]bool{
	TypeRecord:      true,
	TypeRecordStop:  true,
	TypeMultiply:    true,
	TypeInsert:      true,
	TypeSwitch:      true,
	TypeLoopBoundary: true,
}

func Reschedules(t Type) bool { return reschedules[t] }

// Action is the dispatched trigger that owns an event until the event
// completes (spec §6 "Function invocation").
type Action struct {
	Function    string
	Trigger     string
	TriggerID   int
	TrackTarget int
	DownEdge    bool
	SustainLong bool
	Argument    int
}

const noIndex = -1

// Event is a single scheduled action.
type Event struct {
	inUse bool

	Type             Type
	Function         string
	Frame            int
	Pending          bool
	Quantized        bool
	QuantizeMode     QuantizeMode
	Processed        bool
	AfterLoop        bool
	Immediate        bool
	NoUndo           bool
	LatencyLoss      int
	InvokingFunction string
	Reschedule       bool

	Action *Action
	// Payload carries the per-type union data (loop-switch next-loop
	// pointer, jump layer/frame, script wait info, sync source/pulse). Kept
	// as `any` rather than one struct per type to mirror the union the
	// specification describes without a tagged-union boilerplate for every
	// event kind.
	Payload any

	// OnResolve, when set, is invoked when the event fires or is
	// cancelled, modeling script coroutine resumption (spec §9).
	OnResolve func(cancelled bool)

	// Arena linkage.
	index       int
	parent      int
	firstChild  int
	nextSibling int
	prevSibling int
	listNext    int
	listPrev    int
}

func (e *Event) Index() int { return e.index }
