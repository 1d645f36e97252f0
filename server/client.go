package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/internal/ev"
	"deedles.dev/tatami/internal/logger"
	"deedles.dev/tatami/internal/objstore"
	"deedles.dev/tatami/wire"
)

// Client is one connection and everything it owns. When the
// connection goes away, so does all of it; nothing a client created
// outlives it.
type Client struct {
	server *Server
	done   chan struct{}
	close  sync.Once
	conn   *wire.Conn
	store  *objstore.Store

	display    *wlDisplay
	registries []*wlRegistry
	pointers   []*wlPointer
	keyboards  []*wlKeyboard
	touches    []*wlTouch
	outputs    map[*core.Output][]*wlOutput

	outbox []*wire.MessageBuilder
}

func newClient(server *Server, conn *wire.Conn) *Client {
	client := Client{
		server:  server,
		done:    make(chan struct{}),
		conn:    conn,
		store:   objstore.New(1 << 24),
		outputs: make(map[*core.Output][]*wlOutput),
	}

	client.display = &wlDisplay{client: &client}
	client.display.SetID(1)
	client.store.Add(client.display)

	go client.listen()

	return &client
}

func (client *Client) listen() {
	defer func() {
		ev.Post(client.server.queue, client.server.done, func() error {
			client.server.removeClient(client)
			return nil
		})
	}()

	for {
		msg, err := wire.ReadMessage(client.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-client.done:
				return
			default:
			}
			ev.Post(client.server.queue, client.server.done, func() error { return err })
			continue
		}

		select {
		case <-client.done:
			return
		default:
		}
		ev.Post(client.server.queue, client.server.done, func() error {
			return client.handle(msg)
		})
	}
}

func (client *Client) handle(msg *wire.MessageBuffer) error {
	logger.Wire(" <- %v", msg)

	obj, err := client.store.Get(msg.Sender())
	if err == nil {
		err = obj.Dispatch(msg)
	}
	if err == nil {
		return nil
	}

	var perr *core.ProtocolError
	switch {
	case errors.As(err, &perr):
	case errors.As(err, new(objstore.DuplicateIDError)), errors.As(err, new(objstore.UnknownIDError)):
		perr = &core.ProtocolError{Object: msg.Sender(), Code: core.ErrInvalidObject, Reason: err.Error()}
	case errors.As(err, new(wire.UnknownOpError)):
		perr = &core.ProtocolError{Object: msg.Sender(), Code: core.ErrInvalidMethod, Reason: err.Error()}
	case errors.As(err, new(*core.RoleError)):
		// Role misuse fails the request but not the connection.
		logger.Warn("request rejected", "err", err)
		return nil
	default:
		logger.Error("request failed", "err", err)
		return nil
	}

	logger.Warn("protocol error", "object", perr.Object, "code", perr.Code, "reason", perr.Reason)
	client.display.error(perr)
	client.flush()
	client.server.removeClient(client)
	return nil
}

// send queues an event for delivery at the end of the current batch.
func (client *Client) send(msg *wire.MessageBuilder) {
	client.outbox = append(client.outbox, msg)
}

// flush writes out every queued event. A write error poisons the
// connection; the caller disconnects the client.
func (client *Client) flush() error {
	outbox := client.outbox
	client.outbox = nil
	for _, msg := range outbox {
		logger.Wire(" -> %v", msg)
		if err := msg.Build(client.conn); err != nil {
			return err
		}
	}
	return nil
}

// destroyed tells the client an ID it allocated may be reused. Every
// removal of a client-created object ends with this.
func (client *Client) destroyed(id uint32) {
	client.store.Release(id)
	client.display.deleteID(id)
}

// remove runs an object's destructor and retires its ID.
func (client *Client) remove(id uint32) {
	client.store.Delete(id)
	client.display.deleteID(id)
}

func (client *Client) announce(g *Global) {
	for _, reg := range client.registries {
		reg.global(g)
	}
}

func (client *Client) retract(g *Global) {
	for _, reg := range client.registries {
		reg.globalRemove(g)
	}
}

func (client *Client) shutdown() {
	client.close.Do(func() {
		close(client.done)
		client.store.Clear()
		client.conn.Close()
	})
}
