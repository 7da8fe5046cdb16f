package kobject

import (
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// CondFlush clears uid's dirty flag only if its cached data timestamp
// differs from ts, matching AST_$COND_FLUSH. A cache miss is not an
// error: the original silently does nothing when the AOTE isn't
// resident.
func (c *Cache) CondFlush(uid kwire.UID, ts ktick.Clock) error {
	a, ok := c.LookupAOTEByUID(uid)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if a.DataTimestamp == ts {
		return nil
	}
	a.Dirty = false
	return nil
}
