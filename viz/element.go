// Package viz defines the pluggable visualization elements a hosting page is
// assembled from. An element produces one payload per simulation step and
// declares the client-side code needed to render that payload; the host
// embeds the latter verbatim and pushes the former over its websocket.
package viz

import "gridviz/portrayal"

// Model is the agent source an element renders from. It is read-only from
// the element's perspective.
type Model interface {
	Agents() []portrayal.Agent
}

// Element is one visualization component on the hosted page.
type Element interface {
	// Render produces the element's payload for the model's current step.
	// The result must be JSON-serializable.
	Render(Model) any

	// JSCode returns the one-time client bootstrap instruction. The host
	// embeds it into the served page verbatim, so it must be valid
	// standalone javascript.
	JSCode() string

	// PackageIncludes names the browser-side scripts the host must serve
	// for this element's renderer.
	PackageIncludes() []string
}
