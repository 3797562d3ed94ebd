//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ruffel/sshmcp"
	"golang.org/x/term"
)

// forwardResize relays SIGWINCH to the remote PTY until stop is called.
func forwardResize(fd int, ch sshmcp.Channel) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGWINCH)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigs:
				if w, h, err := term.GetSize(fd); err == nil {
					_ = ch.Resize(w, h)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
