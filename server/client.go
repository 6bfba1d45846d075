package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait      = 1 * time.Second
	pingResolution = 200 * time.Millisecond
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4

	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = time.Second
)

var upgrader = websocket.Upgrader{}

// client publishes viz_state updates to one web client and routes the
// client's step/reset requests back to the host. Updates are idempotent
// whole-step states, so a slow client can safely have intervening states
// dropped; only the latest matters.
type client struct {
	updates   chan VizState
	ws        *websock
	rootCtx   context.Context
	logger    *log.Logger
	onMessage func(BaseMessage)
}

// newClient upgrades the request to a websocket and returns the wrapped client.
func newClient(
	w http.ResponseWriter,
	r *http.Request,
	logger *log.Logger,
	onMessage func(BaseMessage),
) (*client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}

	return &client{
		updates:   make(chan VizState, 8),
		ws:        newWebsock(ws),
		rootCtx:   r.Context(),
		logger:    logger,
		onMessage: onMessage,
	}, nil
}

// offer enqueues a state for publication without blocking; when the client's
// buffer is full the state is dropped in favor of whatever arrives next.
func (cli *client) offer(state VizState) {
	select {
	case cli.updates <- state:
	default:
	}
}

// sync runs the connection's routines until disconnect, cancellation, or an
// unexpected error.
func (cli *client) sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})

	return group.Wait()
}

func (cli *client) close() {
	cli.ws.Close()
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: requires that readMessages is running to ensure the pong handler is called.
func (cli *client) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		// readMessages may deliver a pong after this routine has exited;
		// such stragglers are dropped, never sent on a dead channel.
		select {
		case pong <- struct{}{}:
		case <-ctx.Done():
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *client) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %v", err, err)
				}
			}
			return
		})
}

// readMessages monitors for step and reset requests from the client.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown.
func (cli *client) readMessages(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var payload []byte
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, payload, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			continue
		}

		msg, err := DecodeBase(payload)
		if err != nil {
			cli.logger.Debug("undecodable client message", "err", err)
			continue
		}
		cli.onMessage(msg)
	}
}

// publish writes each enqueued state to the peer; offer's drop semantics
// keep the queue current for slow peers.
func (cli *client) publish(ctx context.Context) error {
	var updates <-chan VizState = cli.updates
	for state := range channerics.OrDone(ctx.Done(), updates) {
		err := cli.ws.Write(
			ctx,
			func(ws *websocket.Conn) (writeErr error) {
				if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
					writeErr = fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
					return
				}

				if writeErr = ws.WriteJSON(state); writeErr != nil {
					if isError(writeErr) {
						writeErr = fmt.Errorf("publish failed: %T %v", writeErr, writeErr)
					}
				}
				return
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

// websock merely serializes reads and writes to the websocket, whose
// requirements are that there may be only one concurrent reader and writer
// at a time.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebsock(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close closes the websocket. Call only once no further read/writers exist.
func (sock *websock) Close() {
	sock.readSem <- struct{}{}
	sock.writeSem <- struct{}{}

	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
