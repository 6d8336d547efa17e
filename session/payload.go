package session

import (
	"encoding/json"

	"github.com/chromedp/cdproto/runtime"

	"github.com/pithecene-io/covered/types"
)

// toConsoleEvent converts a protocol event into a validated ConsoleEvent.
func toConsoleEvent(ev *runtime.EventConsoleAPICalled) types.ConsoleEvent {
	return types.ConsoleEvent{
		Type:  types.ConsoleType(ev.Type),
		Value: decodePayload(ev.Args),
	}
}

// decodePayload tags the first console argument. Only string primitives
// become PayloadString; String objects, numbers, undefined and the like are
// opaque.
func decodePayload(args []*runtime.RemoteObject) types.ConsolePayload {
	if len(args) == 0 || args[0] == nil {
		return types.ConsolePayload{Kind: types.PayloadEmpty}
	}

	arg := args[0]
	if arg.Type == runtime.TypeString {
		var s string
		if err := json.Unmarshal(arg.Value, &s); err == nil {
			return types.StringPayload(s)
		}
	}

	raw := arg.Description
	if raw == "" && len(arg.Value) > 0 {
		raw = string(arg.Value)
	}
	if raw == "" {
		raw = string(arg.Type)
	}
	return types.OpaquePayload(raw)
}
