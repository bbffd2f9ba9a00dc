//go:build !linux

package serialport

import (
	"fmt"
	"io"
	"runtime"
)

// Open is only implemented for Linux ttys; other platforms use the TCP
// serial mode.
func Open(device string, baud int) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("serial devices are not supported on %s", runtime.GOOS)
}
