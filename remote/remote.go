// Package remote drives a multiplexer attached to the firmware over the
// serial link. Client implements multiplexer.Mux, so host code does not care
// whether the chip is local or remote.
package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/protocol"
	"hc4067-ctrl/reliableserial"
)

var (
	ErrTimeout = errors.New("remote: timeout waiting for device")
	ErrClosed  = errors.New("remote: client closed")

	ErrUnsupported  = errors.New("remote: request not supported by device")
	ErrHardware     = errors.New("remote: device hardware error")
	ErrDeviceClosed = errors.New("remote: device multiplexer closed")
)

// DeviceError is a TypeError reply.
type DeviceError struct {
	Channel uint8
	Code    uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v (channel %d)", e.Unwrap(), e.Channel)
}

func (e *DeviceError) Unwrap() error {
	switch e.Code {
	case protocol.ErrCodeUnsupported:
		return ErrUnsupported
	case protocol.ErrCodeClosed:
		return ErrDeviceClosed
	default:
		return ErrHardware
	}
}

// Link is satisfied by *reliableserial.ReliableSerial.
type Link interface {
	SendChannel() chan<- reliableserial.Serializable
	ReceiveChannel() <-chan reliableserial.Serializable
}

type Options struct {
	// Timeout bounds each request round trip. Default 500ms.
	Timeout time.Duration
	// NotifyBuffer is the capacity of Notifications. Default 64.
	NotifyBuffer int
	Logger       *slog.Logger
}

type pending struct {
	req    protocol.Event
	expect protocol.EventType
	reply  chan protocol.Event
}

// matches reports whether e answers the request. TypeChange frames are
// always notifications, even for the channel being read.
func (p *pending) matches(e protocol.Event) bool {
	if e.Type == protocol.TypeChange || e.Channel != p.req.Channel {
		return false
	}
	return e.Type == p.expect || e.Type == protocol.TypeError
}

// Client is safe for concurrent use; requests are sent one at a time.
type Client struct {
	link    Link
	timeout time.Duration
	logger  *slog.Logger

	mu sync.Mutex // one request in flight

	pmu     sync.Mutex
	waiting *pending

	notify    chan protocol.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ multiplexer.Mux = (*Client)(nil)

func New(link Link, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	if opts.NotifyBuffer <= 0 {
		opts.NotifyBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Client{
		link:    link,
		timeout: opts.Timeout,
		logger:  opts.Logger.With("component", "remote"),
		notify:  make(chan protocol.Event, opts.NotifyBuffer),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.dispatch()
	return c
}

// Notifications delivers events the device sent on its own: TypeChange
// frames from the scanner and console, console Enable/Disable actions and
// replies that arrived after their request timed out. It is closed by Close.
func (c *Client) Notifications() <-chan protocol.Event { return c.notify }

func (c *Client) dispatch() {
	defer c.wg.Done()
	recv := c.link.ReceiveChannel()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-recv:
			if !ok {
				return
			}
			e, ok := msg.(*protocol.Event)
			if !ok {
				c.logger.Warn("unexpected message type", "msg", msg)
				continue
			}
			c.route(*e)
		}
	}
}

func (c *Client) route(e protocol.Event) {
	c.pmu.Lock()
	p := c.waiting
	if p != nil && p.matches(e) {
		c.waiting = nil
	} else {
		p = nil
	}
	c.pmu.Unlock()

	if p != nil {
		p.reply <- e
		return
	}
	select {
	case c.notify <- e:
	default:
		c.logger.Debug("notification dropped", "event", e.String())
	}
}

func (c *Client) call(req protocol.Event, expect protocol.EventType) (protocol.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return protocol.Event{}, ErrClosed
	default:
	}

	p := &pending{req: req, expect: expect, reply: make(chan protocol.Event, 1)}
	c.pmu.Lock()
	c.waiting = p
	c.pmu.Unlock()
	defer func() {
		c.pmu.Lock()
		if c.waiting == p {
			c.waiting = nil
		}
		c.pmu.Unlock()
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	msg := req
	select {
	case c.link.SendChannel() <- &msg:
	case <-timer.C:
		return protocol.Event{}, ErrTimeout
	case <-c.done:
		return protocol.Event{}, ErrClosed
	}

	select {
	case e := <-p.reply:
		if e.Type == protocol.TypeError {
			return e, &DeviceError{Channel: e.Channel, Code: e.State}
		}
		return e, nil
	case <-timer.C:
		c.logger.Debug("request timed out", "request", req.String())
		return protocol.Event{}, ErrTimeout
	case <-c.done:
		return protocol.Event{}, ErrClosed
	}
}

func (c *Client) Get(channel int) (bool, error) {
	e, err := c.call(protocol.Event{Type: protocol.TypeGet, Channel: multiplexer.Mask(channel)}, protocol.TypeLevel)
	if err != nil {
		return false, err
	}
	return e.High(), nil
}

func (c *Client) Set(channel int, state bool) error {
	req := protocol.Event{Type: protocol.TypeSet, Channel: multiplexer.Mask(channel)}
	if state {
		req.State = 1
	}
	_, err := c.call(req, protocol.TypeAck)
	return err
}

func (c *Client) Enable() error {
	_, err := c.call(protocol.Event{Type: protocol.TypeEnable}, protocol.TypeAck)
	return err
}

func (c *Client) Disable() error {
	_, err := c.call(protocol.Event{Type: protocol.TypeDisable}, protocol.TypeAck)
	return err
}

// Ping checks that the firmware answers.
func (c *Client) Ping() error {
	_, err := c.call(protocol.Event{Type: protocol.TypeHello}, protocol.TypeHello)
	return err
}

// Close stops the client. The link and the device are left untouched.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		close(c.notify)
	})
	return nil
}
