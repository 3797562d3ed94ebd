//go:build windows

package local

import (
	"context"
	"fmt"

	"github.com/ruffel/sshmcp"
)

// Shell is not available on Windows.
func (c *Conn) Shell(_ context.Context, _ sshmcp.PtyRequest) (sshmcp.Channel, error) {
	return nil, fmt.Errorf("local pty shell: %w", sshmcp.ErrNotSupported)
}
