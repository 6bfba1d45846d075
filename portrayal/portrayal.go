// Package portrayal defines the per-step render payload for grid-based agent
// models. A portrayal describes how one agent should be drawn for one step;
// a frame is the ordered sequence of portrayals for all visible agents. The
// payload is consumed by a browser-side SVG renderer, so the attribute names
// below are a wire contract and must be reproduced exactly.
package portrayal

// Attribute keys recognized by the renderer. Capitalization is inconsistent
// by design and significant: "Shape" is capitalized, "text" is not. Callers
// must match exactly.
const (
	KeyShape     = "Shape"
	KeyColor     = "Color"
	KeyFilled    = "Filled"
	KeyLayer     = "Layer"
	KeyText      = "text"
	KeyTextColor = "text_color"
	KeyRadius    = "r"
	KeyScale     = "scale"
	KeyX         = "x"
	KeyY         = "y"
)

// Built-in shape values. Any other Shape value ending in ".svg" names a
// custom glyph the renderer resolves against its image directory; nothing
// here validates that the file exists.
const (
	ShapeCircle   = "circle"
	ShapeSquare   = "square"
	ShapeTriangle = "triangle"
)

// MinLayer is the lowest meaningful Layer value. There is no upper bound.
// Layers -4 through -1 additionally trigger marginalia in the renderer: a
// miniature annotated glyph, attached by a line to the primary shape, shown
// for any layer beneath the topmost occupied layer in the same cell. That
// rule is applied entirely renderer-side; Layer values pass through here
// unaltered.
const MinLayer = -4

// Portrayal maps attribute names to values for one agent for one step.
// Values are forwarded to the renderer verbatim and uninterpreted: "r" and
// "scale" are synonyms resolved by the renderer, not here, and unknown keys
// ride along untouched. A nil or empty Portrayal means the agent is not
// rendered this step.
type Portrayal map[string]any

// Agent is an opaque handle onto one agent in the model, exposing only its
// integer grid position.
type Agent interface {
	Pos() (x, y int)
}

// Func maps an agent to its portrayal for the current step. Implementations
// may read agent state but must not mutate the agent set being iterated.
// Returning nil or an empty portrayal skips the agent entirely.
type Func func(Agent) Portrayal
