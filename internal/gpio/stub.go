//go:build !linux

package gpio

import "errors"

var errNotLinux = errors.New("gpio requires linux")

// RealOutput is unavailable on non-Linux platforms.
type RealOutput struct{}

func NewRealOutput(chip string, pin int) (*RealOutput, error) { return nil, errNotLinux }

func (o *RealOutput) Set(on bool) error { return errNotLinux }
func (o *RealOutput) Close() error      { return nil }

// RealButton is unavailable on non-Linux platforms.
type RealButton struct{}

func NewRealButton(chip string, pin int, pressed func()) (*RealButton, error) {
	return nil, errNotLinux
}

func (b *RealButton) Close() error { return nil }
