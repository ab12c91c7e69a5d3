package child

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/johnlindquist/scriptkit-gpui/internal/wire"
)

// WriteTimeout bounds a single stdin write to the child; if the child isn't
// reading, the OS pipe buffer fills and Write blocks indefinitely. Grounded
// on the teacher's PTY WritePTY goroutine+timer pattern.
const WriteTimeout = 2 * time.Second

// ErrWriteTimeout is returned when a stdin write does not complete within
// WriteTimeout.
var ErrWriteTimeout = fmt.Errorf("child: stdin write timed out")

// SignalGrace is how long the host waits after SIGTERM before escalating to
// SIGKILL (spec §4.2, §5).
const SignalGrace = 2 * time.Second

// Session owns one child process for the lifetime of one script invocation:
// its stdio pipes, its lifecycle state machine, and its correlation id.
//
// Grounded on the teacher's session.go (spawn/lifecycle/stdio wiring),
// generalized from a single fixed agent launch to the runtime fallback
// chain and from a PTY-backed child to a plain-pipe child (the wire
// protocol here runs over framed JSON on stdio, not over a PTY — the PTY
// is reserved for the Term prompt variant, internal/terminal).
type Session struct {
	SessionID     string
	CorrelationID string
	ScriptID      string

	Lifecycle *Lifecycle

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *bytes.Buffer
	wedged bool

	Reader *wire.FrameReader
}

// Spawn tries each runtime attempt in order until one starts successfully,
// wiring stdin/stdout for framed JSON and capturing stderr for crash
// post-mortems. On exhausting every attempt it terminates the lifecycle with
// OutcomeFailed{spawn}.
func Spawn(ctx context.Context, scriptID string, attempts []RuntimeAttempt, env map[string]string, onAttempt func(RuntimeAttempt)) (*Session, error) {
	s := &Session{
		SessionID:     uuid.NewString(),
		CorrelationID: uuid.NewString(),
		ScriptID:      scriptID,
		Lifecycle:     NewLifecycle(),
		stderr:        &bytes.Buffer{},
	}

	type started struct {
		cmd    *exec.Cmd
		stdin  io.WriteCloser
		stdout io.ReadCloser
	}

	result, _, ok := RunFallbackChain(attempts, onAttempt, func(a RuntimeAttempt) (started, bool) {
		cmd := exec.CommandContext(ctx, a.Command, a.Args...)
		cmd.Env = mergeEnv(os.Environ(), env)
		cmd.Stderr = s.stderr
		// Run the runtime in its own process group so Cancel's signal
		// escalation (below) can reach grandchildren the runtime itself
		// spawns (e.g. a bun subprocess shelling out further), not just the
		// immediate child.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return started{}, false
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return started{}, false
		}
		if err := cmd.Start(); err != nil {
			return started{}, false
		}
		return started{cmd: cmd, stdin: stdin, stdout: stdout}, true
	})

	if !ok {
		detail := "no runtime in the fallback chain could be started"
		s.Lifecycle.Terminate(Outcome{Kind: OutcomeFailed, Failure: &FailureDetail{Kind: "spawn", Detail: detail}})
		return nil, fmt.Errorf("child: spawn failed: %s", detail)
	}

	s.cmd = result.cmd
	s.stdin = result.stdin
	s.stdout = result.stdout
	s.Reader = wire.NewFrameReader(result.stdout)
	return s, nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key := kv
		if idx := bytes.IndexByte([]byte(kv), '='); idx >= 0 {
			key = kv[:idx]
		}
		if _, override := extra[key]; !override {
			out = append(out, kv)
		}
	}
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}

// MarkRunning transitions the lifecycle to Running after the first message
// has been read from the child (spec §4.2 Spawning -> Running).
func (s *Session) MarkRunning() {
	s.Lifecycle.ToRunning()
}

// WriteFrame writes f to the child's stdin with a bounded timeout.
func (s *Session) WriteFrame(f wire.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type result struct{ err error }
	ch := make(chan result, 1)
	go func() {
		ch <- result{wire.WriteFrame(s.stdin, f)}
	}()
	timer := time.NewTimer(WriteTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.err
	case <-timer.C:
		return ErrWriteTimeout
	}
}

// Cancel begins graceful shutdown: transitions to Draining, sends SIGTERM,
// and escalates to SIGKILL after SignalGrace if the child is still alive.
// Before escalating, it cross-checks the child's CPU/IO activity
// (internal/child/wedge.go, gopsutil) purely for diagnostics — the
// SignalGrace deadline in spec §4.2/§5 is unconditional, so a child that is
// merely slow rather than wedged is still SIGKILLed on schedule.
func (s *Session) Cancel() {
	s.Lifecycle.ToDraining()
	s.signal(syscall.SIGTERM)
	go func() {
		time.Sleep(SignalGrace)
		if s.Lifecycle.State() != StateTerminated {
			s.mu.Lock()
			cmd := s.cmd
			s.mu.Unlock()
			if cmd != nil && cmd.Process != nil {
				s.wedged = isWedged(cmd.Process.Pid)
			}
			s.signal(syscall.SIGKILL)
		}
	}()
}

// Wedged reports whether the most recent SIGKILL escalation found the child
// showing no CPU/IO activity, for telemetry.
func (s *Session) Wedged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wedged
}

// signal delivers sig to the child's entire process group (negative pid),
// not just the direct child, so a runtime that forks further subprocesses
// (spec §5: "process groups") is terminated as a unit. Falls back to
// signaling just the child process if the group signal is rejected (e.g.
// the process already exited and reaped its group).
func (s *Session) signal(sig syscall.Signal) {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := unix.Kill(-cmd.Process.Pid, sig); err != nil {
		_ = cmd.Process.Signal(sig)
	}
}

// Wait blocks until the child exits and finalizes the lifecycle outcome. If
// the exit code is 0 and the caller reports no pending mandatory prompt, the
// outcome is Succeeded; a non-zero exit produces a Failed outcome whose
// Detail is the parsed error message when stderr looks like a stack trace
// (the raw stderr otherwise). The parsed file/line/col are not kept on the
// Outcome.
func (s *Session) Wait(awaitingMandatoryResponse func() bool) Outcome {
	err := s.cmd.Wait()

	if s.Lifecycle.State() == StateTerminated {
		return s.Lifecycle.Outcome()
	}

	var outcome Outcome
	switch {
	case err == nil:
		if awaitingMandatoryResponse != nil && awaitingMandatoryResponse() {
			outcome = Outcome{Kind: OutcomeFailed, Failure: &FailureDetail{
				Kind:   "transport_disconnected",
				Detail: "child exited while a mandatory prompt response was pending",
			}}
		} else {
			outcome = Outcome{Kind: OutcomeSucceeded}
		}
	default:
		crash := ParseCrash(s.stderr.String())
		detail := s.stderr.String()
		if crash != nil {
			detail = crash.Suggestion
		}
		outcome = Outcome{Kind: OutcomeFailed, Failure: &FailureDetail{Kind: "child_exit", Detail: detail}}
	}

	s.Lifecycle.Terminate(outcome)
	return outcome
}

// Stderr returns the captured stderr output so far.
func (s *Session) Stderr() string {
	return s.stderr.String()
}
