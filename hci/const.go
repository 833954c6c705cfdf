package hci

// HCI Packet types
const (
	pktTypeCommand uint8 = 0x01
	pktTypeACLData uint8 = 0x02
	pktTypeSCOData uint8 = 0x03
	pktTypeEvent   uint8 = 0x04
	pktTypeVendor  uint8 = 0xFF
)

// Packet boundary flags of HCI ACL Data Packet [Vol 2, Part E, 5.4.2].
const (
	pbfHostToControllerStart = 0x00 // Start of a non-automatically-flushable from host to controller.
	pbfContinuing            = 0x01 // Continuing fragment.
	pbfControllerToHostStart = 0x02 // Start of a non-automatically-flushable from controller to host.
	pbfCompleteL2CAPPDU      = 0x03 // A automatically flushable complete PDU. (Not used in LE-U).
)

// CidSMP is the LE Security Manager fixed channel [Vol 3, Part A, 2.1].
const CidSMP uint16 = 0x06

// Event codes [Vol 2, Part E, 7.7].
const (
	disconnectionCompleteCode        = 0x05
	encryptionChangeCode             = 0x08
	commandCompleteCode              = 0x0e
	commandStatusCode                = 0x0f
	numberOfCompletedPacketsCode     = 0x13
	encryptionKeyRefreshCompleteCode = 0x30
	leMetaCode                       = 0x3e
	vendorCode                       = 0xff
)

// LE meta subevent codes [Vol 2, Part E, 7.7.65].
const (
	leConnectionCompleteSubCode         = 0x01
	leLongTermKeyRequestSubCode         = 0x05
	leEnhancedConnectionCompleteSubCode = 0x0a
)

// LE controller commands, OGF 0x08.
const (
	opLEStartEncryption                 = 0x2019
	opLELongTermKeyRequestReply         = 0x201a
	opLELongTermKeyRequestNegativeReply = 0x201b
)

// roles in the connection complete event
const (
	roleMaster = 0x00
	roleSlave  = 0x01
)

// defaultACLDataLen is the LE minimum ACL payload a controller must accept.
const defaultACLDataLen = 27
