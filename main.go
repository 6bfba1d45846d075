/*
gridviz serves browser-rendered views of grid-based agent models. A model
supplies agents with grid positions; a portrayal function maps each agent to
its render attributes (shape, color, size, label, layer); the server pushes
the resulting frame to the page once per step, where an SVG renderer draws
it. This main wires a toy random-walk model to a single SVG grid element,
purely to exercise the pipeline end to end.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"gridviz/portrayal"
	"gridviz/server"
	"gridviz/viz"

	"github.com/charmbracelet/log"
)

const (
	agentCount = 20
	gridWidth  = 10
	gridHeight = 10
	canvasSize = 500
)

// walker is a demo agent that wanders the grid one cell at a time.
type walker struct {
	id   int
	x, y int
}

func (w *walker) Pos() (int, int) {
	return w.x, w.y
}

type walkerModel struct {
	width, height int
	walkers       []*walker
	rng           *rand.Rand
}

func newWalkerModel(n, width, height int, seed int64) *walkerModel {
	rng := rand.New(rand.NewSource(seed))
	m := &walkerModel{
		width:  width,
		height: height,
		rng:    rng,
	}
	for i := 0; i < n; i++ {
		m.walkers = append(m.walkers, &walker{
			id: i,
			x:  rng.Intn(width),
			y:  rng.Intn(height),
		})
	}
	return m
}

func (m *walkerModel) Agents() []portrayal.Agent {
	agents := make([]portrayal.Agent, len(m.walkers))
	for i, w := range m.walkers {
		agents[i] = w
	}
	return agents
}

func (m *walkerModel) Step() {
	for _, w := range m.walkers {
		w.x = clamp(w.x+m.rng.Intn(3)-1, 0, m.width-1)
		w.y = clamp(w.y+m.rng.Intn(3)-1, 0, m.height-1)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// walkerPortrayal styles walkers by id class. The negative layer on circles
// makes occluded ones show up as marginalia in the renderer; the last arm
// uses a custom glyph resolved from the assets image directory.
func walkerPortrayal(agent portrayal.Agent) portrayal.Portrayal {
	w := agent.(*walker)
	p := portrayal.Portrayal{portrayal.KeyFilled: "true"}
	switch w.id % 4 {
	case 0:
		p[portrayal.KeyShape] = portrayal.ShapeCircle
		p[portrayal.KeyLayer] = -1
		p[portrayal.KeyColor] = "rgb(178, 34, 34)"
		p[portrayal.KeyRadius] = 0.9
		p[portrayal.KeyText] = fmt.Sprintf("A%d", w.id)
		p[portrayal.KeyTextColor] = "white"
	case 1:
		p[portrayal.KeyShape] = portrayal.ShapeSquare
		p[portrayal.KeyLayer] = 0
		p[portrayal.KeyColor] = "blue"
		p[portrayal.KeyScale] = 0.7
		p[portrayal.KeyText] = w.id
		p[portrayal.KeyTextColor] = "#FFF"
	case 2:
		p[portrayal.KeyShape] = portrayal.ShapeTriangle
		p[portrayal.KeyLayer] = 1
		p[portrayal.KeyColor] = "green"
		p[portrayal.KeyScale] = 0.5
		p[portrayal.KeyText] = w.id
		p[portrayal.KeyTextColor] = "white"
	default:
		p[portrayal.KeyShape] = "ant.svg"
		p[portrayal.KeyLayer] = 2
		p[portrayal.KeyColor] = "#000000"
		p[portrayal.KeyScale] = 0.8
		p[portrayal.KeyText] = w.id
		p[portrayal.KeyTextColor] = "yellow"
	}
	return p
}

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
	})

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("load config", "err", err)
	}

	grid := viz.NewSVGGrid(walkerPortrayal, gridWidth, gridHeight, canvasSize, canvasSize)
	srv, err := server.New(cfg, logger, func() server.Model {
		return newWalkerModel(agentCount, gridWidth, gridHeight, time.Now().UnixNano())
	}, grid)
	if err != nil {
		logger.Fatal("new server", "err", err)
	}

	srv.Start(context.Background())
	if err := srv.Serve(); err != nil {
		logger.Fatal("serve", "err", err)
	}
}
