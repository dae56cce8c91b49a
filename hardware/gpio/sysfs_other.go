//go:build !linux

package gpio

import "errors"

// Watch needs epoll, so edge interrupts are only available on Linux.
func (s Sysfs) Watch(value Handle) (Waiter, error) {
	return nil, errors.New("edge interrupts need linux")
}
