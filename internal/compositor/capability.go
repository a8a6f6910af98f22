package compositor

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Permission is a privilege a Capability can carry.
type Permission uint8

const (
	// PermScreenshot allows reading the front buffer and cursor bitmap.
	PermScreenshot Permission = 1 << iota
	// PermDisplayLink allows subscribing to frame-tick notifications.
	PermDisplayLink
	// PermScreenNumbers allows toggling the screen-number badges.
	PermScreenNumbers
)

func (p Permission) String() string {
	var names []string
	if p&PermScreenshot != 0 {
		names = append(names, "screenshot")
	}
	if p&PermDisplayLink != 0 {
		names = append(names, "display-link")
	}
	if p&PermScreenNumbers != 0 {
		names = append(names, "screen-numbers")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Capability is a caller token checked at the boundary of privileged
// operations. Reference counts are tracked per capability ID, so a holder
// can only release what it acquired.
type Capability struct {
	id    uuid.UUID
	perms Permission
}

// NewCapability returns a capability with a fresh ID granting perms.
func NewCapability(perms ...Permission) Capability {
	var p Permission
	for _, perm := range perms {
		p |= perm
	}
	return Capability{id: uuid.New(), perms: p}
}

// ID identifies the holder.
func (c Capability) ID() uuid.UUID { return c.id }

// Has reports whether the capability grants p.
func (c Capability) Has(p Permission) bool {
	return c.id != uuid.Nil && c.perms&p == p
}

func (c Capability) String() string {
	return fmt.Sprintf("%s(%s)", c.id, c.perms)
}

func (c Capability) require(p Permission) error {
	if !c.Has(p) {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, c, p)
	}
	return nil
}
