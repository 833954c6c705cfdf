// +build !linux

package socket

import (
	"io"

	"github.com/pkg/errors"
)

// NewSocket is only available on linux.
func NewSocket(id int) (io.ReadWriteCloser, error) {
	return nil, errors.New("hci user channel is only available on linux")
}
