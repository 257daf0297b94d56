package toolexec

import (
	"context"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/errors"
)

var errStreamClosed = errors.E("output consumer finished")

// readTracker records the first read error other than io.EOF.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// Stream runs cmd with its standard output connected to parse, which runs
// concurrently with the tool. cmd.Stdout is ignored. When parse fails on the
// content it read, its error is returned in preference to the tool error
// that the closed pipe then causes.
func Stream(ctx context.Context, r Runner, cmd Cmd, parse func(io.Reader) error) error {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	done := make(chan error, 1)
	go func() {
		t := &readTracker{r: pr}
		err := parse(t)
		if err == nil {
			_, err = io.Copy(ioutil.Discard, t)
		}
		if t.err != nil {
			err = nil
		}
		pr.CloseWithError(errStreamClosed)
		done <- err
	}()
	runErr := r.Run(ctx, cmd)
	pw.CloseWithError(runErr)
	if err := <-done; err != nil {
		return err
	}
	return runErr
}
