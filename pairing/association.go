package pairing

import (
	"fmt"

	"github.com/rigado/smp"
)

// Model is the association model of a pairing attempt.
type Model uint8

const (
	JustWorks Model = iota
	PasskeyEntry
	NumericComparison
	OutOfBand
)

func (m Model) String() string {
	switch m {
	case JustWorks:
		return "just works"
	case PasskeyEntry:
		return "passkey entry"
	case NumericComparison:
		return "numeric comparison"
	case OutOfBand:
		return "out of band"
	default:
		return fmt.Sprintf("Model(%d)", uint8(m))
	}
}

// Authenticated reports whether the model protects against MITM.
func (m Model) Authenticated() bool { return m != JustWorks }

const (
	jw = JustWorks
	pk = PasskeyEntry
	nc = NumericComparison
)

// Mapping of IO capabilities to models, [responder][initiator]
// [Vol 3, Part H, 2.3.5.1, Table 2.8].
var legacyModels = [5][5]Model{
	{jw, jw, pk, jw, pk},
	{jw, jw, pk, jw, pk},
	{pk, pk, pk, jw, pk},
	{jw, jw, jw, jw, jw},
	{pk, pk, pk, jw, pk},
}

var scModels = [5][5]Model{
	{jw, jw, pk, jw, pk},
	{jw, nc, pk, jw, nc},
	{pk, pk, pk, jw, pk},
	{jw, jw, jw, jw, jw},
	{pk, nc, pk, jw, nc},
}

// associationModel picks the model from the initiator's and responder's
// pairing parameters.
func associationModel(init, resp PairingParams, sc bool) (Model, error) {
	if !init.IoCapability.Valid() || !resp.IoCapability.Valid() {
		return 0, smp.UnknownIoCapability
	}

	if sc {
		if init.OobFlag == smp.OobPresent || resp.OobFlag == smp.OobPresent {
			return OutOfBand, nil
		}
	} else if init.OobFlag == smp.OobPresent && resp.OobFlag == smp.OobPresent {
		return OutOfBand, nil
	}

	if !init.AuthReq.MITM() && !resp.AuthReq.MITM() {
		return JustWorks, nil
	}

	if sc {
		return scModels[resp.IoCapability][init.IoCapability], nil
	}
	return legacyModels[resp.IoCapability][init.IoCapability], nil
}

// displaysPasskey reports whether the local side shows the passkey (true)
// or has the user type it (false).
func displaysPasskey(local, peer smp.IoCapability, initiator bool) bool {
	switch {
	case local == smp.KeyboardOnly:
		return false
	case peer == smp.KeyboardOnly:
		return true
	case local == smp.DisplayOnly || local == smp.DisplayYesNo:
		return true
	case peer == smp.DisplayOnly || peer == smp.DisplayYesNo:
		return false
	}
	// both KeyboardDisplay
	return initiator
}
