package provider

// Entry is one position in a fallback chain.
type Entry struct {
	Descriptor Descriptor
	Provider   Provider
}

// Chain is an ordered list of sources, primary first. The primary is always
// attempted; FallbackEnabled controls whether the alternates are.
type Chain struct {
	Entries         []Entry
	FallbackEnabled bool
}

// NewChain builds a chain and stamps each descriptor with its position.
func NewChain(fallbackEnabled bool, entries ...Entry) Chain {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Descriptor.Position = i
		out[i] = e
	}
	return Chain{Entries: out, FallbackEnabled: fallbackEnabled}
}

// Validate reports ErrEmptyChain for a chain with no entries.
func (c Chain) Validate() error {
	if len(c.Entries) == 0 {
		return ErrEmptyChain
	}
	return nil
}

// Primary returns the first entry. It panics on an empty chain; call Validate first.
func (c Chain) Primary() Entry {
	return c.Entries[0]
}

// Names returns the source names in chain order.
func (c Chain) Names() []string {
	names := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		names[i] = e.Descriptor.Name
	}
	return names
}
