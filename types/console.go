package types

// ConsoleType is the console API call type reported by the page.
type ConsoleType string

// Console types the runner distinguishes. Other types (table, trace, ...)
// pass through as-is and are neither echoed nor scanned.
const (
	ConsoleLog     ConsoleType = "log"
	ConsoleDebug   ConsoleType = "debug"
	ConsoleInfo    ConsoleType = "info"
	ConsoleWarning ConsoleType = "warning"
	ConsoleError   ConsoleType = "error"
)

// IsEchoable returns true for the types whose string payloads are echoed and
// scanned for sentinels.
func (t ConsoleType) IsEchoable() bool {
	switch t {
	case ConsoleLog, ConsoleDebug, ConsoleInfo, ConsoleWarning:
		return true
	default:
		return false
	}
}

// PayloadKind tags the first console argument.
type PayloadKind int

const (
	// PayloadEmpty means the console call carried no arguments.
	PayloadEmpty PayloadKind = iota
	// PayloadString means the first argument is a string primitive.
	PayloadString
	// PayloadOpaque means the first argument is anything else (object,
	// number, undefined, ...). Opaque payloads are never scanned.
	PayloadOpaque
)

// ConsolePayload is the validated first argument of a console call.
type ConsolePayload struct {
	Kind PayloadKind
	// Text is the string value for PayloadString, "" for PayloadEmpty,
	// and a raw description for PayloadOpaque (diagnostics only).
	Text string
}

// IsText returns true if the payload may be classified and scanned.
// An argument-less call counts as the empty string.
func (p ConsolePayload) IsText() bool {
	return p.Kind == PayloadString || p.Kind == PayloadEmpty
}

// StringPayload builds a string payload.
func StringPayload(s string) ConsolePayload {
	return ConsolePayload{Kind: PayloadString, Text: s}
}

// OpaquePayload builds an opaque payload with a raw description.
func OpaquePayload(raw string) ConsolePayload {
	return ConsolePayload{Kind: PayloadOpaque, Text: raw}
}

// ConsoleEvent is one console API call observed in the page.
// Consumed immediately by the controller, never stored.
type ConsoleEvent struct {
	Type  ConsoleType
	Value ConsolePayload
}
