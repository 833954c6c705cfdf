package pairing

import "github.com/rigado/smp"

// startEnc asks the controller to encrypt the link, with the key just
// derived or with the stored key a Security Request is answered with.
func startEnc(c *Context, data *EventData) {
	var err error
	switch {
	case data != nil && data.KeyType == KeySTK:
		err = c.tr.StartEncryption(data.Key, 0, 0)
	case c.reencrypt != nil:
		err = c.tr.StartEncryption(c.reencrypt.LTK, c.reencrypt.EDIV, c.reencrypt.Rand)
	default:
		c.log.Errorf("start encryption without a key")
		c.fail(smp.InternalError)
		return
	}

	if err != nil {
		c.failErr(err)
	}
}

func sendLtkReply(c *Context, data *EventData) {
	var key []byte
	if data != nil {
		key = data.Key
	}
	if err := c.tr.LtkReply(key); err != nil {
		c.failErr(err)
	}
}

// checkAuthReq runs once the link is encrypted and moves on to key
// distribution when there is anything to distribute.
func checkAuthReq(c *Context, data *EventData) {
	if data == nil || data.Status != smp.Success {
		c.fail(smp.EncryptionFailed)
		return
	}
	c.flags |= flagEncrypted

	if c.localKeys|c.peerKeys != 0 {
		c.raise(EventBondReq, nil)
		return
	}
	c.complete(smp.Success)
}
