package sshmcp

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"iter"
	"time"
)

// maxLineSize bounds a single streamed line.
const maxLineSize = 1 << 20

// LineStream is a lazy, forward-only sequence of stdout lines from one
// command. Nothing runs until the first call to Next. The stream is not safe
// for concurrent use and cannot be restarted.
//
// While the stream is active it holds the session lock, so it must be drained
// or closed. Closing early cancels the remote command.
type LineStream struct {
	session *Session
	ctx     context.Context //nolint:containedctx // The command starts on the first Next, not at construction.
	command string
	line    string

	started    bool
	finished   bool
	text       string
	err        error
	exitStatus int
	duration   time.Duration

	cancel  context.CancelFunc
	reader  *io.PipeReader
	scanner *bufio.Scanner
	stderr  bytes.Buffer
	result  chan execResult
	start   time.Time
}

type execResult struct {
	status int
	err    error
}

// Next advances to the next line. It returns false once the command has
// finished and all output has been read, or on error.
func (ls *LineStream) Next() bool {
	if ls.finished {
		return false
	}

	if !ls.started && !ls.begin() {
		return false
	}

	if ls.scanner.Scan() {
		ls.text = decodeOutput(ls.scanner.Bytes())

		return true
	}

	ls.finish(ls.scanner.Err())

	return false
}

// Text returns the current line without its trailing newline.
func (ls *LineStream) Text() string {
	return ls.text
}

// Err returns the first transport error encountered. A non-zero exit status
// is not an error; see ExitStatus.
func (ls *LineStream) Err() error {
	return ls.err
}

// ExitStatus returns the command's exit status once the stream is exhausted.
func (ls *LineStream) ExitStatus() int {
	return ls.exitStatus
}

// Stderr returns everything the command wrote to stderr. Only complete once
// the stream is exhausted.
func (ls *LineStream) Stderr() string {
	if !ls.finished {
		return ""
	}

	return decodeOutput(ls.stderr.Bytes())
}

// Duration returns how long the command ran.
func (ls *LineStream) Duration() time.Duration {
	return ls.duration
}

// Lines adapts the stream to a range-over-func iterator. The stream is closed
// when iteration stops. A transport error is yielded as the final element.
func (ls *LineStream) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if ls.finished {
			yield("", ErrStreamConsumed)

			return
		}

		defer func() { _ = ls.Close() }()

		for ls.Next() {
			if !yield(ls.Text(), nil) {
				return
			}
		}

		if err := ls.Err(); err != nil {
			yield("", err)
		}
	}
}

// Close releases the session. If the command is still running it is
// cancelled. Close is idempotent.
func (ls *LineStream) Close() error {
	if ls.finished {
		return nil
	}

	ls.finished = true

	if !ls.started {
		return nil
	}

	ls.cancel()
	_ = ls.reader.Close()
	<-ls.result

	ls.release()

	return nil
}

func (ls *LineStream) begin() bool {
	ls.started = true
	s := ls.session

	s.opMu.Lock()

	conn, err := s.beginCommand()
	if err != nil {
		s.opMu.Unlock()

		ls.finished = true
		ls.err = err

		return false
	}

	ctx, cancel := context.WithCancel(ls.ctx)
	pr, pw := io.Pipe()

	ls.cancel = cancel
	ls.reader = pr
	ls.scanner = bufio.NewScanner(pr)
	ls.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	ls.result = make(chan execResult, 1)
	ls.start = time.Now()

	go func() {
		status, err := conn.Exec(ctx, ls.line, pw, &ls.stderr)
		_ = pw.Close()
		ls.result <- execResult{status: status, err: err}
	}()

	s.logger.Debug().Str("program", ProgramName(ls.command)).Msg("stream started")

	return true
}

func (ls *LineStream) finish(scanErr error) {
	ls.finished = true

	if scanErr != nil {
		ls.cancel()
		_ = ls.reader.CloseWithError(scanErr)
	}

	res := <-ls.result
	ls.exitStatus = res.status

	switch {
	case scanErr != nil:
		ls.err = &TransportError{SessionID: ls.session.id, Command: ls.command, Err: scanErr}
	case res.err != nil:
		ls.err = &TransportError{SessionID: ls.session.id, Command: ls.command, Err: res.err}
	}

	ls.release()
}

func (ls *LineStream) release() {
	ls.cancel()
	ls.duration = time.Since(ls.start)

	s := ls.session
	s.endCommand()
	s.opMu.Unlock()

	s.logger.Debug().
		Str("program", ProgramName(ls.command)).
		Int("exit_status", ls.exitStatus).
		Dur("duration", ls.duration).
		Msg("stream finished")
}
