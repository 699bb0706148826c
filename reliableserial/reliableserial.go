// Package reliableserial keeps a framed message link to a serial device
// alive: it finds the port, opens it, reconnects after failures and moves
// messages through channels so callers never touch the port directly.
package reliableserial

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Serializable is a fixed-size message.
type Serializable interface {
	Serialize() []byte
	Deserialize(data []byte) error
	Size() int
}

var ErrNoDevice = errors.New("reliableserial: no matching device")

type SerialConfig struct {
	BaudRate int
	// ReconnectDelay is the pause between connection attempts. Default 2s.
	ReconnectDelay time.Duration
	// ReadTimeout bounds each port read so shutdown is noticed. Default 100ms.
	ReadTimeout time.Duration
	// QueueSize is the capacity of the send and receive channels. Default 100.
	QueueSize int
}

func (c *SerialConfig) applyDefaults() {
	if c.BaudRate <= 0 {
		c.BaudRate = 115200
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 100 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
}

// Port is the part of serial.Port the link uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

type Lister func() ([]DeviceInfo, error)

type Opener func(name string, baudRate int) (Port, error)

// ListPorts enumerates the serial ports of the host with their USB details.
func ListPorts() ([]DeviceInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, DeviceInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}

func OpenPort(name string, baudRate int) (Port, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baudRate})
}

type Option func(*ReliableSerial)

func WithLister(l Lister) Option { return func(rs *ReliableSerial) { rs.list = l } }

func WithOpener(o Opener) Option { return func(rs *ReliableSerial) { rs.open = o } }

type ReliableSerial struct {
	matcher   Matcher
	cfg       SerialConfig
	logger    *slog.Logger
	handshake func() []byte
	factory   func() Serializable
	list      Lister
	open      Opener

	send chan Serializable
	recv chan Serializable
	done chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu        sync.Mutex
	connected string
}

// NewReliableSerial starts connecting in the background. handshake, when
// not nil, produces bytes written right after every successful open.
// factory returns an empty message used to decode incoming frames.
func NewReliableSerial(
	matcher Matcher,
	cfg SerialConfig,
	logger *slog.Logger,
	handshake func() []byte,
	factory func() Serializable,
	opts ...Option,
) *ReliableSerial {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	rs := &ReliableSerial{
		matcher:   matcher,
		cfg:       cfg,
		logger:    logger.With("component", "reliableserial"),
		handshake: handshake,
		factory:   factory,
		list:      ListPorts,
		open:      OpenPort,
		send:      make(chan Serializable, cfg.QueueSize),
		recv:      make(chan Serializable, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rs)
	}

	rs.wg.Add(1)
	go rs.run()
	return rs
}

// SendChannel queues messages for the device. Messages sent while
// disconnected wait in the queue.
func (rs *ReliableSerial) SendChannel() chan<- Serializable { return rs.send }

// ReceiveChannel delivers decoded messages. It is closed by Close.
func (rs *ReliableSerial) ReceiveChannel() <-chan Serializable { return rs.recv }

// Connected returns the name of the open port, or "" while disconnected.
func (rs *ReliableSerial) Connected() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.connected
}

func (rs *ReliableSerial) setConnected(name string) {
	rs.mu.Lock()
	rs.connected = name
	rs.mu.Unlock()
}

func (rs *ReliableSerial) Close() {
	rs.closeOnce.Do(func() {
		close(rs.done)
		rs.wg.Wait()
		close(rs.recv)
	})
}

func (rs *ReliableSerial) run() {
	defer rs.wg.Done()
	for {
		select {
		case <-rs.done:
			return
		default:
		}

		port, name, err := rs.connect()
		if err != nil {
			rs.logger.Debug("connect failed", "err", err)
		} else {
			rs.logger.Info("connected", "port", name)
			rs.setConnected(name)
			err = rs.serve(port)
			rs.setConnected("")
			if err != nil {
				rs.logger.Warn("connection lost", "port", name, "err", err)
			}
		}

		select {
		case <-rs.done:
			return
		case <-time.After(rs.cfg.ReconnectDelay):
		}
	}
}

func (rs *ReliableSerial) connect() (Port, string, error) {
	infos, err := rs.list()
	if err != nil {
		return nil, "", err
	}
	var name string
	for _, info := range infos {
		if rs.matcher.Match(info) {
			name = info.Name
			break
		}
	}
	if name == "" {
		return nil, "", ErrNoDevice
	}

	port, err := rs.open(name, rs.cfg.BaudRate)
	if err != nil {
		return nil, "", err
	}
	if err := port.SetReadTimeout(rs.cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, "", err
	}
	if rs.handshake != nil {
		if hs := rs.handshake(); len(hs) > 0 {
			if _, err := port.Write(hs); err != nil {
				port.Close()
				return nil, "", err
			}
		}
	}
	return port, name, nil
}

// serve pumps messages until the port fails or the link is closed. The port
// is closed on return.
func (rs *ReliableSerial) serve(port Port) error {
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		readErr <- rs.readLoop(port, stop)
	}()
	defer readers.Wait()
	defer port.Close()
	defer close(stop)

	for {
		select {
		case <-rs.done:
			return nil
		case err := <-readErr:
			return err
		case msg := <-rs.send:
			if _, err := port.Write(msg.Serialize()); err != nil {
				return err
			}
		}
	}
}

// readLoop decodes frames until the port fails, stop is closed or the link
// is closed.
func (rs *ReliableSerial) readLoop(port Port, stop <-chan struct{}) error {
	size := rs.factory().Size()
	buf := make([]byte, 64)
	var pending []byte
	for {
		n, err := port.Read(buf)
		if err != nil {
			return err
		}
		select {
		case <-rs.done:
			return nil
		case <-stop:
			return nil
		default:
		}
		if n == 0 {
			continue
		}
		pending = append(pending, buf[:n]...)

		for len(pending) >= size {
			msg := rs.factory()
			if err := msg.Deserialize(pending[:size]); err != nil {
				rs.logger.Debug("dropping byte", "byte", pending[0])
				pending = pending[1:]
				continue
			}
			pending = pending[size:]
			select {
			case rs.recv <- msg:
			case <-rs.done:
				return nil
			case <-stop:
				return nil
			}
		}
	}
}
