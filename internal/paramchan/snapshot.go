package paramchan

import "strings"

// Snapshot is the immutable {orbital speed, altitude} pair captured at the
// moment of an apply action. Values are raw operator text; the channel does
// not validate them.
type Snapshot struct {
	OrbitalSpeed string
	Altitude     string
}

// Encode serializes the snapshot as a UTF-8 text record with no trailing
// framing or length prefix. The simulator reads one record per write, so
// message boundaries hold only when each send maps to exactly one read on
// the peer side.
func (s Snapshot) Encode() []byte {
	return []byte(s.OrbitalSpeed + ", " + s.Altitude)
}

// Sanitizer rewrites a raw value before serialization.
type Sanitizer func(string) string

// StripNewlines is the channel-escape experiment's sanitizer: it replaces
// newline characters with spaces so a pasted multi-line value cannot smear
// record boundaries. Well-formed single-line input passes through unchanged.
func StripNewlines(v string) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.ReplaceAll(v, "\r", " ")
}
