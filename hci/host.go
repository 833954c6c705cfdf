package hci

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/smp"
	"github.com/rigado/smp/pairing"
)

type handlerFn func(b []byte) error

// Host connects a controller, reached through an H4 byte stream, to a
// pairing Manager. It follows connections, feeds SMP traffic on CidSMP to
// their Sessions and turns the engine's encryption requests into HCI
// commands. Everything else on the link is ignored.
type Host struct {
	rw    io.ReadWriteCloser
	mgr   *pairing.Manager
	local smp.Addr
	log   smp.Logger

	aclDataLen int

	wmu sync.Mutex

	muConns sync.Mutex
	conns   map[uint16]*conn

	evth map[int]handlerFn
	subh map[int]handlerFn

	done chan struct{}
	cmu  sync.Mutex
}

// NewHost returns a Host for the controller behind rw whose own address
// is local.
func NewHost(rw io.ReadWriteCloser, mgr *pairing.Manager, local smp.Addr) *Host {
	h := &Host{
		rw:         rw,
		mgr:        mgr,
		local:      local,
		log:        smp.GetLogger().ChildLogger(map[string]interface{}{"hci": local.String()}),
		aclDataLen: defaultACLDataLen,
		conns:      make(map[uint16]*conn),
		done:       make(chan struct{}),
	}

	h.evth = map[int]handlerFn{
		disconnectionCompleteCode:        h.handleDisconnectionComplete,
		encryptionChangeCode:             h.handleEncryptionChange,
		encryptionKeyRefreshCompleteCode: h.handleEncryptionKeyRefreshComplete,
		commandCompleteCode:              h.handleCommandComplete,
		commandStatusCode:                h.handleCommandStatus,
		leMetaCode:                       h.handleLEMeta,
	}
	h.subh = map[int]handlerFn{
		leConnectionCompleteSubCode:         h.handleLEConnectionComplete,
		leEnhancedConnectionCompleteSubCode: h.handleLEConnectionComplete,
		leLongTermKeyRequestSubCode:         h.handleLELongTermKeyRequest,
	}

	return h
}

// SetACLDataLen sets the largest ACL payload written to the controller,
// as reported by LE Read Buffer Size.
func (h *Host) SetACLDataLen(n int) error {
	if n < defaultACLDataLen {
		return errors.Errorf("acl data length %d below the LE minimum", n)
	}
	h.aclDataLen = n
	return nil
}

// Run reads from the controller until Close or a read error. It returns
// nil after Close.
func (h *Host) Run() error {
	fr := newFrame()
	b := make([]byte, 4096)

	for {
		n, err := h.rw.Read(b)

		select {
		case <-h.done:
			return nil
		default:
		}

		switch {
		//callers depend on detecting io.EOF, don't wrap it.
		case err == io.EOF:
			return err
		case err != nil:
			return errors.Wrap(err, "hci read")
		case n == 0:
			// read timeout
			continue
		}

		for _, p := range fr.Assemble(b[:n]) {
			if err := h.handlePkt(p); err != nil {
				h.log.Debugf("hci: %v", err)
			}
		}
	}
}

func (h *Host) Close() error {
	h.cmu.Lock()
	defer h.cmu.Unlock()

	select {
	case <-h.done:
		return nil
	default:
		close(h.done)
		return errors.Wrap(h.rw.Close(), "can't close hci transport")
	}
}

func (h *Host) write(b []byte) error {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	_, err := h.rw.Write(b)
	return err
}

func (h *Host) conn(handle uint16) (*conn, bool) {
	h.muConns.Lock()
	defer h.muConns.Unlock()
	c, ok := h.conns[handle]
	return c, ok
}

func (h *Host) encDone(handle uint16) {
	h.muConns.Lock()
	defer h.muConns.Unlock()
	if c, ok := h.conns[handle]; ok {
		c.encPending = false
	}
}

func (h *Host) session(handle uint16) (*pairing.Session, error) {
	s, ok := h.mgr.Session(handle)
	if !ok {
		return nil, errors.Errorf("no session for handle %04x", handle)
	}
	return s, nil
}

func (h *Host) handlePkt(b []byte) error {
	// Strip the 1-byte HCI header and pass down the rest of the packet.
	t, b := b[0], b[1:]
	switch t {
	case pktTypeACLData:
		return h.handleACL(b)
	case pktTypeEvent:
		return h.handleEvt(b)

		//unhandled stuff
	case pktTypeCommand:
		return errors.Errorf("unmanaged cmd: % X", b)
	case pktTypeSCOData:
		return errors.Errorf("unsupported sco packet: % X", b)
	case pktTypeVendor:
		return errors.Errorf("unsupported vendor packet: % X", b)
	default:
		return errors.Errorf("invalid packet: 0x%02X % X", t, b)
	}
}

func (h *Host) handleACL(b []byte) error {
	p := aclPacket(b)
	if !p.valid() {
		return errors.Errorf("invalid acl packet: % X", b)
	}

	c, ok := h.conn(p.handle())
	if !ok {
		return errors.Errorf("acl packet for unknown handle %04x", p.handle())
	}

	sdu, err := c.putPacket(p)
	if err != nil || sdu == nil {
		return err
	}
	return h.mgr.Receive(c.handle, sdu)
}

func (h *Host) handleEvt(b []byte) error {
	if len(b) < 2 {
		return errors.Errorf("short event packet: % X", b)
	}
	code, plen := int(b[0]), int(b[1])
	if plen != len(b[2:]) {
		return errors.Errorf("invalid event packet: % X", b)
	}

	if f := h.evth[code]; f != nil {
		return f(b[2:])
	}
	if code == vendorCode || code == numberOfCompletedPacketsCode {
		return nil
	}
	return errors.Errorf("unsupported event packet: % X", b)
}

func (h *Host) handleLEMeta(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty LE meta event")
	}
	subcode := int(b[0])
	if f := h.subh[subcode]; f != nil {
		return f(b)
	}
	return errors.Errorf("unsupported LE event: % X", b)
}

func (h *Host) handleLEConnectionComplete(b []byte) error {
	e := leConnectionComplete(b)

	status, err := e.StatusWErr()
	if err != nil {
		return errors.Wrap(err, "connection complete status")
	}
	if status != 0 {
		h.log.Warnf("connection failed: % X", b)
		return nil
	}

	handle, err := e.ConnectionHandleWErr()
	if err != nil {
		return errors.Wrap(err, "connection complete handle")
	}
	role, err := e.RoleWErr()
	if err != nil {
		return errors.Wrap(err, "connection complete role")
	}
	peer, err := e.PeerAddressWErr()
	if err != nil {
		return errors.Wrap(err, "connection complete peer address")
	}

	c := &conn{h: h, handle: handle, peer: peer}
	l := pairing.Link{Role: pairing.Central, Local: h.local, Peer: peer, Transport: c}
	if role == roleSlave {
		l.Role = pairing.Peripheral
	}

	h.muConns.Lock()
	h.conns[handle] = c
	h.muConns.Unlock()

	h.log.Debugf("connection complete %04x: peer %v, role %v", handle, peer, l.Role)
	if _, err := h.mgr.Connect(handle, l); err != nil {
		return errors.Wrapf(err, "connect %04x", handle)
	}
	return nil
}

func (h *Host) handleDisconnectionComplete(b []byte) error {
	e := disconnectionComplete(b)
	if status, err := e.StatusWErr(); err != nil || status != 0 {
		return errors.Errorf("disconnect complete: % X", b)
	}
	handle, err := e.ConnectionHandleWErr()
	if err != nil {
		return errors.Wrap(err, "disconnect complete handle")
	}
	reason, _ := e.ReasonWErr()
	h.log.Debugf("disconnect complete %04x, reason 0x%02x", handle, reason)

	h.muConns.Lock()
	delete(h.conns, handle)
	h.muConns.Unlock()

	return h.mgr.Disconnect(handle)
}

func (h *Host) handleEncryptionChange(b []byte) error {
	e := encryptionChange(b)
	handle, err := e.ConnectionHandleWErr()
	if err != nil {
		return errors.Wrap(err, "encryption change handle")
	}
	h.encDone(handle)
	s, err := h.session(handle)
	if err != nil {
		return err
	}

	status, _ := e.StatusWErr()
	enabled, _ := e.EncryptionEnabledWErr()
	s.EncryptionChanged(status == 0 && enabled != 0)
	return nil
}

func (h *Host) handleEncryptionKeyRefreshComplete(b []byte) error {
	e := encryptionKeyRefreshComplete(b)
	handle, err := e.ConnectionHandleWErr()
	if err != nil {
		return errors.Wrap(err, "key refresh handle")
	}
	h.encDone(handle)
	s, err := h.session(handle)
	if err != nil {
		return err
	}

	status, _ := e.StatusWErr()
	s.EncryptionChanged(status == 0)
	return nil
}

func (h *Host) handleLELongTermKeyRequest(b []byte) error {
	e := leLongTermKeyRequest(b)
	handle, err := e.ConnectionHandleWErr()
	if err != nil {
		return errors.Wrap(err, "ltk request handle")
	}
	rand, err := e.RandomNumberWErr()
	if err != nil {
		return errors.Wrap(err, "ltk request rand")
	}
	ediv, err := e.EncryptedDiversifierWErr()
	if err != nil {
		return errors.Wrap(err, "ltk request ediv")
	}

	s, err := h.session(handle)
	if err != nil {
		// nobody can answer, don't leave the controller waiting
		if werr := h.write(leLongTermKeyRequestNegativeReply(handle)); werr != nil {
			return errors.Wrapf(werr, "ltk negative reply (%v)", err)
		}
		return err
	}
	s.LtkRequest(ediv, rand)
	return nil
}

func (h *Host) handleCommandComplete(b []byte) error {
	e := commandComplete(b)
	op, err := e.CommandOpcodeWErr()
	if err != nil {
		return errors.Wrap(err, "command complete opcode")
	}
	rp, _ := e.ReturnParametersWErr()
	if len(rp) > 0 && rp[0] != 0 {
		h.log.Warnf("command 0x%04x failed, status 0x%02x", op, rp[0])
	}
	return nil
}

// handleCommandStatus only matters for LE Start Encryption, whose failure
// has no other event. The handle isn't reported, so every link waiting
// for encryption is told.
func (h *Host) handleCommandStatus(b []byte) error {
	e := commandStatus(b)
	op, err := e.CommandOpcodeWErr()
	if err != nil {
		return errors.Wrap(err, "command status opcode")
	}
	status, _ := e.StatusWErr()
	if status == 0 || op != opLEStartEncryption {
		return nil
	}

	h.log.Warnf("start encryption failed, status 0x%02x", status)

	var failed []uint16
	h.muConns.Lock()
	for handle, c := range h.conns {
		if c.encPending {
			c.encPending = false
			failed = append(failed, handle)
		}
	}
	h.muConns.Unlock()

	for _, handle := range failed {
		if s, ok := h.mgr.Session(handle); ok {
			s.EncryptionChanged(false)
		}
	}
	return nil
}
