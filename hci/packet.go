package hci

import "encoding/binary"

// aclPacket implements HCI ACL Data Packet [Vol 2, Part E, 5.4.2], without
// the H4 packet type.
// Packet boundary flags , bit[5:6] of handle field's MSB
// Broadcast flags. bit[7:8] of handle field's MSB, always point-to-point
// on LE-U.
type aclPacket []byte

func (a aclPacket) handle() uint16 { return uint16(a[0]) | (uint16(a[1]&0x0f) << 8) }
func (a aclPacket) pbf() int       { return (int(a[1]) >> 4) & 0x3 }
func (a aclPacket) dlen() int      { return int(a[2]) | (int(a[3]) << 8) }
func (a aclPacket) data() []byte   { return a[4:] }

func (a aclPacket) valid() bool { return len(a) >= 4 && len(a) == 4+a.dlen() }

// pdu is an L2CAP basic frame [Vol 3, Part A, 3.1].
type pdu []byte

func (p pdu) dlen() int       { return int(binary.LittleEndian.Uint16(p[0:2])) }
func (p pdu) cid() uint16     { return binary.LittleEndian.Uint16(p[2:4]) }
func (p pdu) payload() []byte { return p[4:] }

// aclFragments frames an SMP PDU for handle and splits it into ACL packets
// of at most mtu payload octets, each prefixed with the H4 packet type.
func aclFragments(handle uint16, cid uint16, data []byte, mtu int) [][]byte {
	sdu := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(sdu[0:2], uint16(len(data)))
	binary.LittleEndian.PutUint16(sdu[2:4], cid)
	copy(sdu[4:], data)

	var out [][]byte
	pbf := pbfHostToControllerStart
	for len(sdu) > 0 {
		n := len(sdu)
		if n > mtu {
			n = mtu
		}

		b := make([]byte, 5+n)
		b[0] = pktTypeACLData
		binary.LittleEndian.PutUint16(b[1:3], handle&0x0fff|uint16(pbf)<<12)
		binary.LittleEndian.PutUint16(b[3:5], uint16(n))
		copy(b[5:], sdu[:n])
		out = append(out, b)

		sdu = sdu[n:]
		pbf = pbfContinuing
	}
	return out
}

// command builds an H4 HCI command packet [Vol 2, Part E, 5.4.1].
func command(op uint16, params []byte) []byte {
	b := make([]byte, 4+len(params))
	b[0] = pktTypeCommand
	binary.LittleEndian.PutUint16(b[1:3], op)
	b[3] = byte(len(params))
	copy(b[4:], params)
	return b
}

// leStartEncryption [Vol 2, Part E, 7.8.24]
func leStartEncryption(handle uint16, rand uint64, ediv uint16, ltk []byte) []byte {
	p := make([]byte, 28)
	binary.LittleEndian.PutUint16(p[0:], handle)
	binary.LittleEndian.PutUint64(p[2:], rand)
	binary.LittleEndian.PutUint16(p[10:], ediv)
	copy(p[12:], ltk)
	return command(opLEStartEncryption, p)
}

// leLongTermKeyRequestReply [Vol 2, Part E, 7.8.25]
func leLongTermKeyRequestReply(handle uint16, ltk []byte) []byte {
	p := make([]byte, 18)
	binary.LittleEndian.PutUint16(p[0:], handle)
	copy(p[2:], ltk)
	return command(opLELongTermKeyRequestReply, p)
}

// leLongTermKeyRequestNegativeReply [Vol 2, Part E, 7.8.26]
func leLongTermKeyRequestNegativeReply(handle uint16) []byte {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, handle)
	return command(opLELongTermKeyRequestNegativeReply, p)
}
