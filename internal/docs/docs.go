// Package docs embeds the operator-facing protocol reference shipped with
// the binary. The docs command and the in-app help overlay render it.
package docs

import (
	_ "embed"
)

// protocolDoc embeds the protocol reference markdown.
//
//go:embed protocol.md
var protocolDoc string

// Protocol returns the embedded protocol reference as raw markdown.
func Protocol() string {
	return protocolDoc
}
