package server

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"gridviz/portrayal"
	"gridviz/viz"

	. "github.com/smartystreets/goconvey/convey"
)

type gridAgent struct {
	x, y int
}

func (a gridAgent) Pos() (int, int) {
	return a.x, a.y
}

// fakeModel counts steps; its single agent drifts right each step.
type fakeModel struct {
	steps, x, y int
}

func newFakeModel() *fakeModel {
	return &fakeModel{}
}

func (m *fakeModel) Agents() []portrayal.Agent {
	return []portrayal.Agent{gridAgent{m.x, m.y}}
}

func (m *fakeModel) Step() {
	m.steps++
	m.x++
}

func circlePortrayal(portrayal.Agent) portrayal.Portrayal {
	return portrayal.Portrayal{
		portrayal.KeyShape: portrayal.ShapeCircle,
		portrayal.KeyColor: "red",
		portrayal.KeyLayer: 0,
	}
}

func newTestServer(t *testing.T, fn portrayal.Func) *Server {
	t.Helper()
	grid := viz.NewSVGGrid(fn, 10, 10, 0, 0)
	s, err := New(DefaultConfig(), nil, func() Model { return newFakeModel() }, grid)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	Convey("When no elements are registered", t, func() {
		_, err := New(DefaultConfig(), nil, func() Model { return newFakeModel() })

		So(errors.Is(err, ErrNoElements), ShouldBeTrue)
	})

	Convey("When the config is invalid", t, func() {
		cfg := DefaultConfig()
		cfg.PublishMillis = 0
		grid := viz.NewSVGGrid(circlePortrayal, 10, 10, 0, 0)

		_, err := New(cfg, nil, func() Model { return newFakeModel() }, grid)

		So(err, ShouldNotBeNil)
	})
}

func TestStepAndReset(t *testing.T) {
	Convey("Given a server with one attached client", t, func() {
		s := newTestServer(t, circlePortrayal)
		cli := &client{updates: make(chan VizState, 8)}
		s.addClient(cli)

		Convey("When the model advances, the client receives the new state", func() {
			s.advance()

			state := <-cli.updates
			So(state.Type, ShouldEqual, TypeVizState)
			So(state.Step, ShouldEqual, 1)
			So(state.Data, ShouldHaveLength, 1)

			frame, ok := state.Data[0].(portrayal.Frame)
			So(ok, ShouldBeTrue)
			So(frame, ShouldHaveLength, 1)
			// The agent moved right on the step.
			So(frame[0][portrayal.KeyX], ShouldEqual, 1)
		})

		Convey("When the model is reset, the step counter rewinds and the model is rebuilt", func() {
			s.advance()
			s.advance()
			<-cli.updates
			<-cli.updates

			state := s.resetState()

			So(state.Step, ShouldEqual, 0)
			frame := state.Data[0].(portrayal.Frame)
			So(frame[0][portrayal.KeyX], ShouldEqual, 0)
		})

		Convey("When a portrayal function panics, the step is aborted and nothing is sent", func() {
			s2 := newTestServer(t, func(portrayal.Agent) portrayal.Portrayal {
				panic("boom")
			})
			cli2 := &client{updates: make(chan VizState, 8)}
			s2.addClient(cli2)

			s2.advance()

			So(cli2.updates, ShouldBeEmpty)
		})

		Convey("When a slow client's buffer is full, newer states are dropped, not blocked on", func() {
			for i := 0; i < 20; i++ {
				s.advance()
			}
			So(len(cli.updates), ShouldEqual, 8)
		})
	})
}

func TestServeIndex(t *testing.T) {
	Convey("Given the served index page", t, func() {
		s := newTestServer(t, circlePortrayal)

		req := httptest.NewRequest("GET", "/", nil)
		rec := httptest.NewRecorder()
		s.serveIndex(rec, req)
		body := rec.Body.String()

		Convey("Then the element bootstrap is embedded verbatim", func() {
			So(body, ShouldContainSubstring,
				"window.onload = function() {elements.push(new SVGGridModule(500, 500, 10, 10));};")
		})

		Convey("Then the renderer script is included", func() {
			So(body, ShouldContainSubstring, `<script src="/static/js/SVGGridModule.js"></script>`)
		})

		Convey("Then the page carries the configured title", func() {
			So(body, ShouldContainSubstring, "<title>Grid Visualization</title>")
		})

		Convey("Then unknown paths 404", func() {
			rec := httptest.NewRecorder()
			s.serveIndex(rec, httptest.NewRequest("GET", "/nope", nil))
			So(rec.Code, ShouldEqual, 404)
		})
	})
}

func TestProtocol(t *testing.T) {
	Convey("Given client messages on the wire", t, func() {
		Convey("When a get_step request is decoded", func() {
			msg, err := DecodeBase([]byte(`{"type":"get_step"}`))

			So(err, ShouldBeNil)
			So(msg.Type, ShouldEqual, TypeGetStep)
		})

		Convey("When garbage is decoded", func() {
			_, err := DecodeBase([]byte(`{`))

			So(err, ShouldNotBeNil)
		})

		Convey("When an unknown message type arrives, it is ignored", func() {
			s := newTestServer(t, circlePortrayal)
			cli := &client{updates: make(chan VizState, 8)}
			s.addClient(cli)

			s.onClientMessage(BaseMessage{Type: "wat"})

			So(cli.updates, ShouldBeEmpty)
		})
	})
}

func TestPackageIncludes(t *testing.T) {
	Convey("Given two elements sharing a renderer script", t, func() {
		fn := circlePortrayal
		a := viz.NewSVGGrid(fn, 10, 10, 0, 0)
		b := viz.NewSVGGrid(fn, 5, 5, 0, 0)
		s, err := New(DefaultConfig(), nil, func() Model { return newFakeModel() }, a, b)
		So(err, ShouldBeNil)

		Convey("Then the include list is deduplicated", func() {
			So(s.packageIncludes(), ShouldResemble, []string{"SVGGridModule.js"})
		})

		Convey("Then both payloads ride in one state, in registration order", func() {
			s.mu.Lock()
			state := s.renderLocked()
			s.mu.Unlock()

			So(state.Data, ShouldHaveLength, 2)
		})
	})
}

func TestIndexTemplateSanity(t *testing.T) {
	// The inline script must survive html/template without mangling.
	Convey("The page script routes viz_state payloads by element index", t, func() {
		s := newTestServer(t, circlePortrayal)
		rec := httptest.NewRecorder()
		s.serveIndex(rec, httptest.NewRequest("GET", "/", nil))
		body := rec.Body.String()

		So(body, ShouldContainSubstring, "elements[i].render(msg.data[i])")
		So(strings.Count(body, "<script>"), ShouldEqual, 2)
	})
}
