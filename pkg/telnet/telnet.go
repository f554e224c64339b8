package telnet

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Telnet command bytes relevant to stripping. Everything else the server
// may negotiate is discarded rather than interpreted; the bridge only
// needs a usable text stream.
const (
	IAC  = 255 // Interpret As Command
	SB   = 250 // subnegotiation begin
	SE   = 240 // subnegotiation end
	WILL = 251
	WONT = 252
	DO   = 253
	DONT = 254
)

// replacementRatioLimit is the fraction of decoded runes allowed to be
// UTF-8 replacement characters before the frame is re-decoded as
// ISO-8859-1. Servers that mix encodings without negotiation garble a
// few bytes; past this limit UTF-8 was the wrong guess for the frame.
const replacementRatioLimit = 0.02

// Strip removes telnet negotiation traffic from raw, returning only
// application bytes. It is total: malformed or truncated command
// sequences are discarded, never surfaced as text, and it never panics.
//
//   - IAC IAC emits one literal 255 byte
//   - IAC SB ... IAC SE is dropped whole; an unterminated subnegotiation
//     drops the remainder of the input
//   - IAC WILL/WONT/DO/DONT <opt> drops three bytes
//   - IAC <other> drops two bytes
func Strip(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	i, n := 0, len(raw)

	for i < n {
		b := raw[i]
		if b != IAC {
			out = append(out, b)
			i++
			continue
		}

		if i+1 >= n {
			// IAC at end of frame, nothing to interpret
			break
		}
		cmd := raw[i+1]

		switch {
		case cmd == IAC:
			out = append(out, IAC)
			i += 2
		case cmd == SB:
			i += 2
			for i < n {
				if raw[i] == IAC && i+1 < n && raw[i+1] == SE {
					i += 2
					break
				}
				i++
			}
		case cmd >= WILL && cmd <= DONT:
			i += 3
		default:
			i += 2
		}
	}

	return out
}

// Decode strips negotiation traffic from raw and converts the remainder
// to text. UTF-8 is attempted first; if more than replacementRatioLimit
// of the result had to be substituted, the same bytes are re-decoded as
// ISO-8859-1, which can represent any byte value and never fails.
func Decode(raw []byte) string {
	cleaned := Strip(raw)
	if len(cleaned) == 0 {
		return ""
	}

	text, replaced, total := decodeUTF8Replace(cleaned)
	if total > 0 && float64(replaced)/float64(total) > replacementRatioLimit {
		latin, err := charmap.ISO8859_1.NewDecoder().Bytes(cleaned)
		if err == nil {
			return string(latin)
		}
	}
	return text
}

// decodeUTF8Replace decodes b as UTF-8, substituting U+FFFD for each
// invalid byte, and reports how many substitutions were made out of how
// many runes total.
func decodeUTF8Replace(b []byte) (string, int, int) {
	var sb strings.Builder
	sb.Grow(len(b))

	replaced, total := 0, 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			replaced++
		}
		sb.WriteRune(r)
		total++
		b = b[size:]
	}
	return sb.String(), replaced, total
}
