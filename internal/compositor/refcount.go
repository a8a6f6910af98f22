package compositor

import (
	"fmt"

	"github.com/google/uuid"
)

// refCount is a reference count with a per-holder ledger, so every
// decrement must match an earlier increment by the same holder.
type refCount struct {
	name    string
	total   int
	holders map[uuid.UUID]int
}

func newRefCount(name string) refCount {
	return refCount{name: name, holders: make(map[uuid.UUID]int)}
}

// inc adds a reference for holder and returns the new total.
func (r *refCount) inc(holder uuid.UUID) int {
	r.holders[holder]++
	r.total++
	return r.total
}

// dec drops a reference held by holder. The count is left unchanged when
// holder has nothing to release.
func (r *refCount) dec(holder uuid.UUID) (int, error) {
	n := r.holders[holder]
	if n == 0 {
		return r.total, fmt.Errorf("%w: %s held by %s", ErrUnbalancedDecrement, r.name, holder)
	}
	if n == 1 {
		delete(r.holders, holder)
	} else {
		r.holders[holder] = n - 1
	}
	r.total--
	return r.total, nil
}

// IncrementDisplayLinkCount subscribes the holder of token to frame-tick
// notifications.
func (c *Compositor) IncrementDisplayLinkCount(token Capability) error {
	if err := token.require(PermDisplayLink); err != nil {
		return err
	}
	if c.displayLinks.inc(token.ID()) == 1 {
		c.logger.Debug("display link activated")
	}
	return nil
}

// DecrementDisplayLinkCount drops one display-link subscription held by token.
func (c *Compositor) DecrementDisplayLinkCount(token Capability) error {
	if err := token.require(PermDisplayLink); err != nil {
		return err
	}
	n, err := c.displayLinks.dec(token.ID())
	if err != nil {
		return err
	}
	if n == 0 {
		c.logger.Debug("display link deactivated")
	}
	return nil
}

// DisplayLinkCount returns the number of active display-link subscriptions.
func (c *Compositor) DisplayLinkCount() int { return c.displayLinks.total }

// DisplayLinkActive reports whether frame-tick notification is enabled.
func (c *Compositor) DisplayLinkActive() bool { return c.displayLinks.total > 0 }

// NotifyDisplayLinks delivers a frame-tick notification when at least one
// subscriber is registered. The scheduler calls it on every steady tick.
func (c *Compositor) NotifyDisplayLinks() bool {
	if !c.DisplayLinkActive() {
		return false
	}
	c.displayLinkTicks++
	if c.displayLinkNotify != nil {
		c.displayLinkNotify(c.frame)
	}
	return true
}

// IncrementShowScreenNumber requests the screen-number badges. The badges
// appear when the count goes from zero to one.
func (c *Compositor) IncrementShowScreenNumber(token Capability) error {
	if err := token.require(PermScreenNumbers); err != nil {
		return err
	}
	if c.screenNumbers.inc(token.ID()) == 1 {
		c.showScreenNumbers()
	}
	return nil
}

// DecrementShowScreenNumber drops one badge request held by token; the badges
// disappear when the count reaches zero.
func (c *Compositor) DecrementShowScreenNumber(token Capability) error {
	if err := token.require(PermScreenNumbers); err != nil {
		return err
	}
	n, err := c.screenNumbers.dec(token.ID())
	if err != nil {
		return err
	}
	if n == 0 {
		c.hideScreenNumbers()
	}
	return nil
}

// ShowScreenNumberCount returns the number of outstanding badge requests.
func (c *Compositor) ShowScreenNumberCount() int { return c.screenNumbers.total }

func (c *Compositor) showScreenNumbers() {
	c.hideScreenNumbers()
	for i, s := range c.screens {
		o := newScreenNumberOverlay(s.screen, i+1, c.theme)
		c.screenNumberHandles = append(c.screenNumberHandles, c.overlays.Create(o))
	}
}

func (c *Compositor) hideScreenNumbers() {
	for _, h := range c.screenNumberHandles {
		h.Release()
	}
	c.screenNumberHandles = nil
}
