// Package h4 opens controllers speaking the H4 (UART) HCI transport, over
// a serial port or a TCP bridge. Packets are not reassembled here; the
// byte stream is passed through and hci.Host frames it.
package h4

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/rigado/smp"
)

const (
	// DefaultBaudRate matches most HCI UART firmwares.
	DefaultBaudRate = 1000000

	flushDelay = 250 * time.Millisecond

	// readPoll bounds a Read that sees no data
	readPoll = 100 * time.Millisecond
)

// hciReset is an HCI_Reset command in H4 framing.
var hciReset = []byte{0x01, 0x03, 0x0c, 0x00}

// DefaultOptions returns 8N1 options with hardware flow control for port.
func DefaultOptions(port string) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:          port,
		BaudRate:          DefaultBaudRate,
		DataBits:          8,
		StopBits:          1,
		ParityMode:        serial.PARITY_NONE,
		RTSCTSFlowControl: true,
	}
}

type h4 struct {
	rw  io.ReadWriteCloser
	log smp.Logger

	rmu sync.Mutex
	wmu sync.Mutex

	done chan struct{}
	cmu  sync.Mutex
}

// New opens the serial port in opts. A Read returns (0, nil) when nothing
// arrived for about 100ms, so the caller can notice Close.
func New(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	// force these
	opts.MinimumReadSize = 0
	opts.InterCharacterTimeout = uint(readPoll / time.Millisecond)

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %v", opts.PortName)
	}

	h := newH4(sp, opts.PortName)
	if err := h.flush(); err != nil {
		sp.Close()
		return nil, err
	}
	h.log.Infof("opened at %d baud", opts.BaudRate)
	return h, nil
}

// Dial connects to an H4 stream served over TCP, as exposed by emulators
// and serial-to-network bridges.
func Dial(addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %v", addr)
	}
	return newH4(&tcpConn{Conn: c, timeout: timeout}, addr), nil
}

// tcpConn polls reads like the serial port does, and bounds writes by the
// dial timeout.
type tcpConn struct {
	net.Conn
	timeout time.Duration
}

func (c *tcpConn) Read(b []byte) (int, error) {
	c.Conn.SetReadDeadline(time.Now().Add(readPoll))
	return c.Conn.Read(b)
}

func (c *tcpConn) Write(b []byte) (int, error) {
	c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.Conn.Write(b)
}

func newH4(rw io.ReadWriteCloser, name string) *h4 {
	return &h4{
		rw:   rw,
		log:  smp.GetLogger().ChildLogger(map[string]interface{}{"h4": name}),
		done: make(chan struct{}),
	}
}

// flush resets the controller and drops whatever it had queued for us.
func (h *h4) flush() error {
	if _, err := h.rw.Write(hciReset); err != nil {
		return errors.Wrap(err, "can't reset controller")
	}
	<-time.After(flushDelay)

	b := make([]byte, 2048)
	if _, err := h.rw.Read(b); err != nil && err != io.EOF {
		return errors.Wrap(err, "can't flush controller")
	}
	return nil
}

func (h *h4) Read(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.rmu.Lock()
	defer h.rmu.Unlock()
	n, err := h.rw.Read(p)

	// check if we are still open since the read could take a while
	if !h.isOpen() {
		return 0, io.EOF
	}
	if isTimeout(err) {
		return 0, nil
	}
	if err == io.EOF {
		return n, err
	}
	if n > 0 {
		h.log.Debugf("read [% X]", p[:n])
	}
	return n, errors.Wrap(err, "can't read h4")
}

func (h *h4) Write(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()
	n, err := h.rw.Write(p)
	h.log.Debugf("write [% X]", p)
	return n, errors.Wrap(err, "can't write h4")
}

func (h *h4) Close() error {
	h.cmu.Lock()
	defer h.cmu.Unlock()

	select {
	case <-h.done:
		return nil

	default:
		close(h.done)
		h.log.Debugf("closing")
		err := h.rw.Close()
		return errors.Wrap(err, "can't close h4")
	}
}

func (h *h4) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
