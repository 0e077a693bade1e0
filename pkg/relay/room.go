package relay

import (
	"strings"

	"github.com/code-100-precent/LingRelay/pkg/auth"
)

// ResolveRoom picks the room a connection joins. A room is keyed by its non-admin participant,
// so users always land in their own room; admins may target any room through hint.
func ResolveRoom(p auth.Principal, hint string) string {
	if !p.IsAdmin {
		return p.ID
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		return hint
	}
	return p.ID
}
