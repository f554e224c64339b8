/*
Package telnet strips telnet negotiation traffic from a raw MUX byte
stream and converts it to text with a defensive encoding choice.

Both entry points are pure functions over a byte slice: no state is kept
between calls, malformed input is discarded rather than erroring, and
decoding is total (never panics, always returns a string).

# Stripping

Strip scans for the IAC escape byte (255) and removes:

	IAC IAC                 → one literal 255 byte is kept
	IAC SB ... IAC SE       → whole subnegotiation dropped
	IAC WILL/WONT/DO/DONT x → three bytes dropped
	IAC <anything else>     → two bytes dropped

An unterminated subnegotiation drops the remainder of the frame; partial
negotiation payload is never surfaced as application text.

# Encoding

MUX servers predate encoding negotiation and routinely mix UTF-8 with
legacy single-byte text. Decode tries UTF-8 first and counts replacement
characters; if more than 2% of the runes were substitutions, the frame is
re-decoded as ISO-8859-1, which maps every byte value and cannot fail.
Short frames can guess wrong, which is acceptable: the marker parser
downstream is line-oriented and tolerant of stray characters outside the
payload it extracts.

# Integration Points

  - pkg/session: decodes every received frame before line splitting
*/
package telnet
