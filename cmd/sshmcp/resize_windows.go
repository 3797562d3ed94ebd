package main

import "github.com/ruffel/sshmcp"

// forwardResize is a no-op: Windows consoles do not raise SIGWINCH.
func forwardResize(int, sshmcp.Channel) func() {
	return func() {}
}
