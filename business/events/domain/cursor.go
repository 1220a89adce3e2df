package domain

// Cursor tracks the highest key delivered for a filter.
type Cursor struct {
	last Key
	set  bool
}

// Admit advances the cursor to k and reports true when k is past it.
// Keys at or behind the cursor are rejected.
func (c *Cursor) Admit(k Key) bool {
	if c.set && !c.last.Less(k) {
		return false
	}
	c.last = k
	c.set = true
	return true
}

// Position returns the last delivered key.
func (c *Cursor) Position() (Key, bool) {
	return c.last, c.set
}

// ResumeBlock returns the first block a catch-up fetch must cover. The
// cursor block is included since later logs in it may not have been seen.
func (c *Cursor) ResumeBlock(from uint64) uint64 {
	if !c.set || c.last.Block < from {
		return from
	}
	return c.last.Block
}
