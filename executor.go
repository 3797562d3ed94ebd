package sshmcp

import (
	"context"
	"fmt"
	"time"
)

// RunLineStream runs command on s and calls onLine for each stdout line as it
// arrives. The returned result carries the exit status, stderr and duration;
// its Stdout is empty because every line has already gone to onLine.
func RunLineStream(ctx context.Context, s *Session, command string, onLine func(string), opts ...ExecOption) (*CommandResult, error) {
	stream, err := s.ExecuteStream(ctx, command, opts...)
	if err != nil {
		return nil, err
	}

	defer func() { _ = stream.Close() }()

	for stream.Next() {
		onLine(stream.Text())
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &CommandResult{
		SessionID:  s.ID(),
		ExitStatus: stream.ExitStatus(),
		Stderr:     stream.Stderr(),
		Duration:   stream.Duration(),
	}, nil
}

// RunBuffered runs command on s and fails with an *ExitStatusError when it
// exits non-zero. Use it where a failing command should abort the caller;
// ExecuteCommand itself never treats a non-zero exit as an error.
func RunBuffered(ctx context.Context, s *Session, command string, timeout time.Duration, opts ...ExecOption) (*CommandResult, error) {
	res, err := s.ExecuteCommand(ctx, command, timeout, opts...)
	if err != nil {
		return nil, err
	}

	if res.Failed() {
		return res, &ExitStatusError{Command: command, Result: res}
	}

	return res, nil
}

// ExitStatusError reports a command that completed with a non-zero status.
type ExitStatusError struct {
	Command string
	Result  *CommandResult
}

func (e *ExitStatusError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.Result.ExitStatus)
	if e.Result.Stderr != "" {
		msg += ": " + lastLine(e.Result.Stderr)
	}

	return msg
}

func lastLine(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}

	start := end
	for start > 0 && s[start-1] != '\n' {
		start--
	}

	return s[start:end]
}
