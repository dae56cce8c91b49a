package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Watch returns a Waiter that blocks until the kernel flags an edge on the
// value file. sysfs signals edges with POLLPRI|POLLERR on the value fd.
func (s Sysfs) Watch(value Handle) (Waiter, error) {
	f, ok := value.(interface{ Fd() uintptr })
	if !ok {
		return nil, fmt.Errorf("handle %T has no file descriptor to wait on", value)
	}

	return newEpollWaiter(int(f.Fd()))
}

type epollWaiter struct {
	epfd int
	wake [2]int

	closed atomic.Bool
	// waitMu is held for as long as a Wait is blocked, so Close can release the
	// descriptors once the waiting goroutine is out of epoll_wait.
	waitMu sync.Mutex
}

func newEpollWaiter(fd int) (*epollWaiter, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("unable to create epoll instance: %w", err)
	}

	w := &epollWaiter{epfd: epfd}
	if err := unix.Pipe2(w.wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("unable to create wake pipe: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLPRI | unix.EPOLLERR | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		w.release()
		return nil, fmt.Errorf("unable to watch fd %d: %w", fd, err)
	}

	wev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(w.wake[0])}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, w.wake[0], &wev); err != nil {
		w.release()
		return nil, fmt.Errorf("unable to watch wake pipe: %w", err)
	}

	// a freshly registered value fd always reports ready once; swallow it
	events := make([]unix.EpollEvent, 2)
	_, _ = unix.EpollWait(epfd, events, 0)

	return w, nil
}

func (w *epollWaiter) Wait() error {
	w.waitMu.Lock()
	defer w.waitMu.Unlock()

	events := make([]unix.EpollEvent, 2)
	for {
		if w.closed.Load() {
			return ErrWaiterClosed
		}

		n, err := unix.EpollWait(w.epfd, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for _, ev := range events[:n] {
			if int(ev.Fd) == w.wake[0] {
				return ErrWaiterClosed
			}
		}

		if n > 0 {
			return nil
		}
	}
}

func (w *epollWaiter) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	if _, err := unix.Write(w.wake[1], []byte{0}); err != nil {
		return fmt.Errorf("unable to wake waiter: %w", err)
	}

	w.waitMu.Lock()
	defer w.waitMu.Unlock()

	return w.release()
}

func (w *epollWaiter) release() error {
	unix.Close(w.wake[0])
	unix.Close(w.wake[1])
	return unix.Close(w.epfd)
}
