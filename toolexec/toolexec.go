// Package toolexec runs the external programs the pipeline delegates to: the
// read aligner, its index builder, and bedtools. Every invocation either
// completes or fails the run; there are no retries.
package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"v.io/x/lib/lookpath"
)

// maxStderr bounds how much of a failed tool's stderr is kept for the error
// message.
const maxStderr = 4 << 10

// Cmd describes one tool invocation.
type Cmd struct {
	// Name is the program, looked up in PATH.
	Name string
	Args []string
	// Stdin, if non-nil, is fed to the program.
	Stdin io.Reader
	// Stdout, if non-nil, receives the program's standard output. Otherwise
	// it is discarded.
	Stdout io.Writer
}

func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner runs external tools. Implementations must be safe for concurrent
// use.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) error
}

// Error is the failure of an external tool.
type Error struct {
	Cmd string
	// Stderr is the tail of the tool's standard error.
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Cmd, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// IsToolError reports whether err, possibly wrapped by errors.E, is an
// external tool failure.
func IsToolError(err error) bool {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return true
		case *errors.Error:
			if errors.Is(errors.Unavailable, e) {
				return true
			}
			err = e.Err
		default:
			return false
		}
	}
	return false
}

// tailBuffer keeps the last maxStderr bytes written to it.
type tailBuffer struct{ buf []byte }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if n := len(t.buf); n > maxStderr {
		t.buf = t.buf[n-maxStderr:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(bytes.TrimSpace(t.buf)) }

// ExecRunner runs tools as local subprocesses.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Cmd) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	if c.Stdout == nil {
		c.Stdout = ioutil.Discard
	}
	stderr := &tailBuffer{}
	c.Stderr = stderr
	log.Debug.Printf("run: %s", cmd)
	if err := c.Run(); err != nil {
		if e, ok := err.(*exec.Error); ok && e.Err == exec.ErrNotFound {
			return errors.E(errors.Unavailable, &Error{Cmd: cmd.String(), Err: err})
		}
		return &Error{Cmd: cmd.String(), Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Check verifies that every named program is in PATH.
func Check(names ...string) error {
	env := map[string]string{"PATH": os.Getenv("PATH")}
	var missing []string
	for _, name := range names {
		path, err := lookpath.Look(env, name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		log.Debug.Printf("found %s: %s", name, path)
	}
	if len(missing) > 0 {
		return errors.E(errors.Unavailable, fmt.Sprintf("required programs not found in PATH: %s",
			strings.Join(missing, ", ")))
	}
	return nil
}
