package holiday

import (
	"strings"

	"github.com/google/uuid"
)

// IdentityFunc assigns a stable identifier from a natural key. Stores that
// are populated independently agree on IDs as long as they share the func.
type IdentityFunc func(naturalKey string) string

// staffNamespace scopes staff IDs so they never collide with other entities
// hashed from the same text.
var staffNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("holiday-engine/staff"))

// StaffIdentity hashes the trimmed, case-folded display name.
func StaffIdentity(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(staffNamespace, []byte(key)).String()
}

// RandomIdentity ignores the key and returns a random UUID.
func RandomIdentity(string) string {
	return uuid.NewString()
}
