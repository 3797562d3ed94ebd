package sshmcp

import (
	"context"
	"time"
)

// startKeepalive launches the keepalive loop for the current connection.
// Callers must hold opMu.
func (s *Session) startKeepalive() {
	interval := s.cfg.KeepaliveInterval
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.keepaliveStop = stop
	s.keepaliveDone = done

	go s.keepaliveLoop(interval, stop, done)
}

// stopKeepalive stops the keepalive loop and waits for it to exit.
// Callers must hold opMu.
func (s *Session) stopKeepalive() {
	if s.keepaliveStop == nil {
		return
	}

	close(s.keepaliveStop)
	<-s.keepaliveDone

	s.keepaliveStop = nil
	s.keepaliveDone = nil
}

// keepaliveLoop pings the connection every interval. A tick is skipped while
// another operation holds the session lock, since that operation is already
// exercising the connection. The loop exits after the first failed ping.
func (s *Session) keepaliveLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.opMu.TryLock() {
				continue
			}

			lost := s.ping()
			s.opMu.Unlock()

			if lost {
				return
			}
		}
	}
}

// ping sends one keepalive and reports whether the loop should stop.
// Callers must hold opMu.
func (s *Session) ping() bool {
	s.stateMu.RLock()
	conn, state := s.conn, s.state
	s.stateMu.RUnlock()

	if conn == nil {
		return true
	}

	if state != StateConnected {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if err := conn.Keepalive(ctx); err != nil {
		s.markLost(err)

		return true
	}

	s.logger.Trace().Msg("keepalive ok")

	return false
}
