package marker

import (
	"regexp"
	"strings"

	"github.com/noesislabs/noesis-bridge/pkg/types"
)

// Reject explains why a line or field set produced no event. Rejections
// feed diagnostics and metrics only; they never drive control flow and
// never consume a sequence number.
type Reject string

const (
	RejectNone         Reject = ""
	RejectBadPrefix    Reject = "bad_prefix"
	RejectEmptyPayload Reject = "empty_payload"
	RejectNoFields     Reject = "no_fields"
	RejectMissingKind  Reject = "missing_kind"
	RejectUnknownKind  Reject = "unknown_kind"
	RejectMissingField Reject = "missing_field"
)

// Fields is the flat key/value mapping decoded from a marker payload.
type Fields map[string]string

// prefixRe recognizes the in-band marker: leading whitespace, the prefix
// (case-insensitive), an optional colon, then the payload.
var prefixRe = regexp.MustCompile(`(?i)^\s*NOESIS:?\s*(.*)$`)

// ParseLine decodes one line of server text into marker fields.
//
// The payload is pipe-separated `k=v` fields; empty fields and fields
// without `=` are discarded silently rather than failing the line. A line
// that yields no usable pair is treated as non-qualifying.
func ParseLine(line string) (Fields, Reject) {
	m := prefixRe.FindStringSubmatch(line)
	if m == nil {
		return nil, RejectBadPrefix
	}
	payload := strings.TrimSpace(m[1])
	if payload == "" {
		return nil, RejectEmptyPayload
	}

	fields := Fields{}
	for _, part := range strings.Split(payload, "|") {
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if len(fields) == 0 {
		return nil, RejectNoFields
	}
	return fields, RejectNone
}

// schema describes one event kind: which keys must be present and how to
// assemble the event body from the fields. New kinds register here.
type schema struct {
	mandatory []string
	assemble  func(f Fields, ev *types.Event)
}

var schemas = map[types.EventType]schema{
	types.EventSay: {
		mandatory: []string{"actor", "loc"},
		assemble: func(f Fields, ev *types.Event) {
			ev.Actor = identity(f["actor"])
			ev.Location = identity(f["loc"])
			ev.Content = map[string]string{"raw": f["raw"]}
			if verb := f["verb"]; verb != "" {
				ev.Content["verb"] = verb
			}
		},
	},
	types.EventMove: {
		mandatory: []string{"actor", "from", "to"},
		assemble: func(f Fields, ev *types.Event) {
			ev.Actor = identity(f["actor"])
			ev.Location = identity(f["to"])
			ev.Content = map[string]string{
				"from": f["from"],
				"to":   f["to"],
				"raw":  f["raw"],
			}
		},
	},
}

// Build validates fields against the kind schema selected by the `t` key
// and assembles an event body. The returned event carries no timestamp,
// run id, or sequence number; those belong to the caller and are assigned
// only after Build succeeds, so rejected input never wastes a number.
func Build(f Fields) (*types.Event, Reject) {
	kind := f["t"]
	if kind == "" {
		return nil, RejectMissingKind
	}

	s, ok := schemas[types.EventType(kind)]
	if !ok {
		return nil, RejectUnknownKind
	}
	for _, key := range s.mandatory {
		if f[key] == "" {
			return nil, RejectMissingField
		}
	}

	ev := &types.Event{Type: types.EventType(kind)}
	s.assemble(f, ev)
	ev.Perception = types.Perception{
		PerceivedBy: []string{ev.Actor.DBRef},
		OccludedFor: []string{},
	}
	return ev, RejectNone
}

// identity builds an Identity whose display name starts out equal to the
// raw dbref; the renderer maps dbrefs to names downstream.
func identity(dbref string) types.Identity {
	return types.Identity{DBRef: dbref, Name: dbref}
}
