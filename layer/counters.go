// SPDX-License-Identifier: Unlicense OR MIT

package layer

// AggregateCounters is an encapsulated value type tracking the
// per-layer portion counts used to short-circuit render passes: a
// layer with zero visible portions, or where every portion is
// culled, skips all passes without touching the GPU. Fields are
// private; callers mutate state only through Apply/AddPortion/Add —
// direct field mutation would make the short-circuit check
// unreliable.
type AggregateCounters struct {
	numPortions    int
	numVisible     int
	numTransparent int
	numXrayed      int
	numHighlighted int
	numSelected    int
	numEdges       int
	numPickable    int
	numCulled      int
	numClippable   int
}

func (c AggregateCounters) NumPortions() int    { return c.numPortions }
func (c AggregateCounters) NumVisible() int     { return c.numVisible }
func (c AggregateCounters) NumTransparent() int { return c.numTransparent }
func (c AggregateCounters) NumXrayed() int      { return c.numXrayed }
func (c AggregateCounters) NumHighlighted() int { return c.numHighlighted }
func (c AggregateCounters) NumSelected() int    { return c.numSelected }
func (c AggregateCounters) NumEdges() int       { return c.numEdges }
func (c AggregateCounters) NumPickable() int    { return c.numPickable }
func (c AggregateCounters) NumCulled() int      { return c.numCulled }
func (c AggregateCounters) NumClippable() int   { return c.numClippable }

// SkipAllPasses reports whether every render pass can short-circuit
// for this layer.
func (c AggregateCounters) SkipAllPasses() bool {
	return c.numPortions == 0 || c.numVisible == 0 || c.numCulled == c.numPortions
}

// AddPortion registers a new portion with the given initial flag
// state.
func (c *AggregateCounters) AddPortion(f FlagState) {
	c.numPortions++
	c.apply(FlagState{}, f)
}

// Apply adjusts every counter for a portion's flag-state transition
// from was to is. A no-op transition (was == is) touches nothing,
// which is what makes repeated identical SetFlags calls idempotent.
func (c *AggregateCounters) Apply(was, is FlagState) {
	c.apply(was, is)
}

func (c *AggregateCounters) apply(was, is FlagState) {
	bump(&c.numVisible, was.Visible, is.Visible)
	bump(&c.numTransparent, was.Transparent, is.Transparent)
	bump(&c.numXrayed, was.Xrayed, is.Xrayed)
	bump(&c.numHighlighted, was.Highlighted, is.Highlighted)
	bump(&c.numSelected, was.Selected, is.Selected)
	bump(&c.numEdges, was.Edges, is.Edges)
	bump(&c.numPickable, was.Pickable, is.Pickable)
	bump(&c.numCulled, was.Culled, is.Culled)
	bump(&c.numClippable, was.Clippable, is.Clippable)
}

func bump(counter *int, was, is bool) {
	if was == is {
		return
	}
	if is {
		*counter++
	} else {
		*counter--
	}
}

// Add merges o's counters into c, used by an aggregator to mirror the
// sum of every owned layer's counters.
func (c *AggregateCounters) Add(o AggregateCounters) {
	c.numPortions += o.numPortions
	c.numVisible += o.numVisible
	c.numTransparent += o.numTransparent
	c.numXrayed += o.numXrayed
	c.numHighlighted += o.numHighlighted
	c.numSelected += o.numSelected
	c.numEdges += o.numEdges
	c.numPickable += o.numPickable
	c.numCulled += o.numCulled
	c.numClippable += o.numClippable
}
