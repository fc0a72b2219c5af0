package provider

import "github.com/google/uuid"

// Correlator mints correlation ids that pair tool invocations with
// their results inside one execution call. Native backend item ids are
// remembered for the life of the call and never leak across calls.
type Correlator struct {
	ids   map[string]string
	newID func() string
}

func NewCorrelator() *Correlator {
	return &Correlator{
		ids:   make(map[string]string),
		newID: uuid.NewString,
	}
}

// Mint returns the correlation id for a native item id, creating one on
// first sight. Completion records whose native id was never announced
// still get a fresh id rather than being dropped. An empty native id is
// never remembered.
func (c *Correlator) Mint(nativeID string) string {
	if nativeID == "" {
		return c.newID()
	}
	if id, ok := c.ids[nativeID]; ok {
		return id
	}
	id := c.newID()
	c.ids[nativeID] = id
	return id
}

// Seen reports whether a native id has already been minted.
func (c *Correlator) Seen(nativeID string) bool {
	_, ok := c.ids[nativeID]
	return ok
}
