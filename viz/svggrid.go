package viz

import (
	"fmt"

	"gridviz/portrayal"
)

// Default canvas size in pixels, used when a constructor dimension is
// non-positive.
const (
	DefaultCanvasWidth  = 500
	DefaultCanvasHeight = 500
)

// SVGGrid renders a model's agents as a frame of portrayals drawn by the
// SVGGridModule.js renderer: one SVG scene per step, with shapes, colors,
// labels, and layering taken from each agent's portrayal. The element itself
// is a pass-through; all drawing rules (shape dispatch, z-ordering,
// marginalia for negative layers, tooltip interactivity) live client-side.
type SVGGrid struct {
	portrayalFn  portrayal.Func
	gridWidth    int
	gridHeight   int
	canvasWidth  int
	canvasHeight int
}

// NewSVGGrid returns a grid element over the given portrayal function and
// grid dimensions (in cells). Canvas dimensions are in pixels; pass zero for
// the 500x500 defaults.
func NewSVGGrid(fn portrayal.Func, gridWidth, gridHeight, canvasWidth, canvasHeight int) *SVGGrid {
	if canvasWidth <= 0 {
		canvasWidth = DefaultCanvasWidth
	}
	if canvasHeight <= 0 {
		canvasHeight = DefaultCanvasHeight
	}
	return &SVGGrid{
		portrayalFn:  fn,
		gridWidth:    gridWidth,
		gridHeight:   gridHeight,
		canvasWidth:  canvasWidth,
		canvasHeight: canvasHeight,
	}
}

// Render builds the current step's frame from the model's agents.
func (g *SVGGrid) Render(model Model) any {
	return portrayal.BuildFrame(model.Agents(), g.portrayalFn)
}

// JSCode returns the bootstrap instruction instantiating the client renderer.
// The constructor's four parameters are canvas width, canvas height, grid
// width, grid height, in that order; both sides must agree on it.
func (g *SVGGrid) JSCode() string {
	return fmt.Sprintf(
		"window.onload = function() {elements.push(new SVGGridModule(%d, %d, %d, %d));};",
		g.canvasWidth, g.canvasHeight, g.gridWidth, g.gridHeight)
}

// PackageIncludes names the renderer script the host serves for this element.
func (g *SVGGrid) PackageIncludes() []string {
	return []string{"SVGGridModule.js"}
}
