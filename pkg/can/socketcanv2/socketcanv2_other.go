//go:build !arm && !arm64

package socketcanv2

import (
	"golang.org/x/sys/unix"
)

var DefaultTimeVal = unix.Timeval{
	Sec:  0,
	Usec: 100_000,
}
