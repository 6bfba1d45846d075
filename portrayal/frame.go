package portrayal

// Frame is the ordered sequence of portrayals for one simulation step. It
// marshals as a JSON array; an empty frame marshals as [], not null.
type Frame []Portrayal

// BuildFrame produces the frame for the current step: agents are visited in
// source order, each is passed to fn, and nil or empty results are skipped
// entirely. The agent's grid position is stamped onto the result under "x"
// and "y", overwriting any values fn may have set; those two keys have no
// other writer. Everything else in the portrayal passes through untouched.
//
// BuildFrame holds no state between calls, performs no I/O, and does not
// sort, deduplicate, or validate. A panic inside fn propagates to the
// caller; no partial frame is returned.
func BuildFrame(agents []Agent, fn Func) Frame {
	frame := make(Frame, 0, len(agents))
	for _, agent := range agents {
		p := fn(agent)
		if len(p) == 0 {
			continue
		}
		x, y := agent.Pos()
		p[KeyX] = x
		p[KeyY] = y
		frame = append(frame, p)
	}
	return frame
}
