// Package server hosts visualization elements: it serves a single page whose
// head carries each element's verbatim bootstrap instruction, then pushes one
// viz_state message per simulation step over a websocket. The server owns no
// model dynamics; it only advances the model it was given and forwards each
// element's payload untouched.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"gridviz/viz"

	"github.com/charmbracelet/log"
	channerics "github.com/niceyeti/channerics/channels"
)

// Model is the simulation being visualized: an agent source that can be
// advanced one step at a time. Scheduling, activation order, and dynamics
// all belong to the model.
type Model interface {
	viz.Model
	Step()
}

// ErrNoElements is returned when a server is constructed without any
// visualization elements.
var ErrNoElements = errors.New("no visualization elements registered")

// Server hosts a set of visualization elements over one model.
type Server struct {
	cfg      Config
	logger   *log.Logger
	elements []viz.Element
	newModel func() Model
	tmpl     *template.Template

	// mu guards the model and step counter; frames are built under it.
	mu    sync.Mutex
	model Model
	step  int

	clientsMu sync.Mutex
	clients   map[*client]struct{}
}

// New returns a server hosting the given elements over a model produced by
// newModel. The factory is re-invoked on client reset requests.
func New(
	cfg Config,
	logger *log.Logger,
	newModel func() Model,
	elements ...viz.Element,
) (*Server, error) {
	if len(elements) == 0 {
		return nil, ErrNoElements
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("index template: %w", err)
	}

	return &Server{
		cfg:      cfg,
		logger:   logger,
		elements: elements,
		newModel: newModel,
		tmpl:     tmpl,
		model:    newModel(),
		clients:  map[*client]struct{}{},
	}, nil
}

// Start runs the autostep loop until ctx is cancelled. With autostep
// disabled this is a no-op and the model advances only on client get_step
// requests.
func (s *Server) Start(ctx context.Context) {
	if !s.cfg.Autostep {
		return
	}
	go func() {
		for range channerics.NewTicker(ctx.Done(), s.cfg.PublishRate()) {
			s.advance()
		}
	}()
}

// Serve blocks on the listener.
func (s *Server) Serve() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/ws", s.serveWebsocket)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.AssetsDir))))

	s.logger.Info("serving", "addr", s.cfg.Addr)
	if err := http.ListenAndServe(s.cfg.Addr, mux); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// advance steps the model once and broadcasts the resulting state. A failed
// step aborts that step's update entirely; nothing partial is sent.
func (s *Server) advance() {
	state, err := s.nextState()
	if err != nil {
		s.logger.Error("step aborted", "err", err)
		return
	}
	s.broadcast(state)
}

// nextState advances the model and renders every element. A panicking
// portrayal function surfaces here as the step's error; no partial state
// escapes.
func (s *Server) nextState() (state VizState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("portrayal failure at step %d: %v", s.step, r)
		}
	}()

	s.model.Step()
	s.step++
	state = s.renderLocked()
	return
}

// renderLocked builds the viz_state payload for the current step.
// Callers hold s.mu.
func (s *Server) renderLocked() VizState {
	data := make([]any, 0, len(s.elements))
	for _, ele := range s.elements {
		data = append(data, ele.Render(s.model))
	}
	return VizState{Type: TypeVizState, Step: s.step, Data: data}
}

// resetState rebuilds the model from its factory and renders step zero.
func (s *Server) resetState() VizState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = s.newModel()
	s.step = 0
	return s.renderLocked()
}

func (s *Server) broadcast(state VizState) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for cli := range s.clients {
		cli.offer(state)
	}
}

func (s *Server) addClient(cli *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[cli] = struct{}{}
}

func (s *Server) removeClient(cli *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, cli)
}

func (s *Server) onClientMessage(msg BaseMessage) {
	switch msg.Type {
	case TypeGetStep:
		s.advance()
	case TypeReset:
		s.logger.Info("model reset")
		s.broadcast(s.resetState())
	default:
		s.logger.Debug("unhandled client message", "type", msg.Type)
	}
}

// serveWebsocket attaches one client: it receives the current state
// immediately so the page paints before the first step, then follows the
// broadcast stream.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := newClient(w, r, s.logger, s.onClientMessage)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	s.addClient(cli)
	defer s.removeClient(cli)

	s.mu.Lock()
	initial := s.renderLocked()
	s.mu.Unlock()
	cli.offer(initial)

	if err := cli.sync(); err != nil && !isClosure(err) {
		s.logger.Error("client sync ended", "err", err)
	}
	cli.close()
}

// serveIndex serves the main page.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	bootstraps := make([]template.JS, 0, len(s.elements))
	for _, ele := range s.elements {
		// Embedded verbatim; elements own their bootstrap syntax.
		bootstraps = append(bootstraps, template.JS(ele.JSCode()))
	}

	err := s.tmpl.Execute(w, indexData{
		Title:      s.cfg.Title,
		Includes:   s.packageIncludes(),
		Bootstraps: bootstraps,
	})
	if err != nil {
		s.logger.Error("render index failed", "err", err)
	}
}

// packageIncludes collects the element script names, deduplicated, in
// registration order.
func (s *Server) packageIncludes() []string {
	seen := map[string]bool{}
	var includes []string
	for _, ele := range s.elements {
		for _, inc := range ele.PackageIncludes() {
			if !seen[inc] {
				seen[inc] = true
				includes = append(includes, inc)
			}
		}
	}
	return includes
}

type indexData struct {
	Title      string
	Includes   []string
	Bootstraps []template.JS
}

// The page bootstraps the websocket, loads the element renderer scripts, and
// runs each element's bootstrap instruction. Element payloads arrive in
// registration order: data[i] belongs to elements[i].
const indexTemplate = `<!DOCTYPE html>
<html>
	<head>
		<title>{{ .Title }}</title>
		<link rel="icon" href="data:,">
		<script>
			const elements = [];

			const ws = new WebSocket("ws://" + window.location.host + "/ws");
			ws.onopen = function (event) {
				console.log("Web socket opened");
			};
			ws.onerror = function (event) {
				console.log("WebSocket error: ", event);
			};

			// The meat: when the server pushes a step's state, hand each element its payload.
			ws.onmessage = function (event) {
				const msg = JSON.parse(event.data);
				if (msg.type !== "viz_state") {
					return;
				}
				for (let i = 0; i < elements.length; i++) {
					elements[i].render(msg.data[i]);
				}
			};

			function send(type) {
				ws.send(JSON.stringify({ type: type }));
			}
		</script>
		{{ range .Includes }}<script src="/static/js/{{ . }}"></script>
		{{ end }}{{ range .Bootstraps }}<script>{{ . }}</script>
		{{ end }}
	</head>
	<body>
		<div>
			<button onclick="send('get_step')">Step</button>
			<button onclick="send('reset')">Reset</button>
		</div>
	</body>
</html>
`
