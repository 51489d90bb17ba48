// Package session holds the live-session state machines: the host's
// room lifecycle and aggregation, the student's exam-taking flow, and
// the per-question countdown runner they share with offline mode.
package session

import (
	"strings"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// IdentityPrefix namespaces room codes before they are handed to the
// broker, so this application never collides with unrelated traffic
// on a shared relay.
const IdentityPrefix = "EQ-"

const maxRoomCodeLen = 10

// RoomIdentity validates a human-entered room code and returns the
// namespaced broker identity for it.
func RoomIdentity(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > maxRoomCodeLen {
		return "", domain.ErrInvalidRoomCode
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", domain.ErrInvalidRoomCode
		}
	}
	return IdentityPrefix + code, nil
}
