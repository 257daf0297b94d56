package toolexec_test

import (
	"bytes"
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repenrich/toolexec"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"v.io/x/lib/gosh"
	"v.io/x/lib/lookpath"
)

func requireSh(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	if _, err := lookpath.Look(sh.Vars, "sh"); err != nil {
		t.Skip("sh not found on the machine. Skipping the test")
	}
}

func TestExecRunner(t *testing.T) {
	requireSh(t)
	ctx := context.Background()
	var out bytes.Buffer
	err := toolexec.ExecRunner{}.Run(ctx, toolexec.Cmd{
		Name:   "sh",
		Args:   []string{"-c", "tr a-z A-Z"},
		Stdin:  strings.NewReader("acgt\n"),
		Stdout: &out,
	})
	assert.NoError(t, err)
	expect.EQ(t, out.String(), "ACGT\n")
}

func TestExecRunnerFailure(t *testing.T) {
	requireSh(t)
	ctx := context.Background()
	err := toolexec.ExecRunner{}.Run(ctx, toolexec.Cmd{
		Name: "sh",
		Args: []string{"-c", "echo index missing 1>&2; exit 3"},
	})
	assert.NotNil(t, err)
	expect.True(t, toolexec.IsToolError(err))
	expect.HasSubstr(t, err.Error(), "index missing")

	err = toolexec.ExecRunner{}.Run(ctx, toolexec.Cmd{Name: "no-such-tool-repenrich"})
	assert.NotNil(t, err)
	expect.True(t, toolexec.IsToolError(err))
	expect.True(t, errors.Is(errors.Unavailable, err))

	// Wrapping keeps the classification.
	expect.True(t, toolexec.IsToolError(errors.E(err, "element AluY")))
	expect.False(t, toolexec.IsToolError(errors.E(errors.Invalid, "parse")))
}

func TestCheck(t *testing.T) {
	requireSh(t)
	assert.NoError(t, toolexec.Check("sh"))
	err := toolexec.Check("sh", "no-such-tool-repenrich")
	expect.True(t, errors.Is(errors.Unavailable, err))
	expect.HasSubstr(t, err.Error(), "no-such-tool-repenrich")
}

// lineRunner writes n numbered lines to stdout, then returns err.
type lineRunner struct {
	n   int
	err error
}

func (r lineRunner) Run(ctx context.Context, cmd toolexec.Cmd) error {
	for i := 0; i < r.n; i++ {
		if _, err := fmt.Fprintf(cmd.Stdout, "line%d\n", i); err != nil {
			return &toolexec.Error{Cmd: cmd.String(), Err: err}
		}
	}
	return r.err
}

func countLines(n *int) func(io.Reader) error {
	return func(r io.Reader) error {
		s := bufio.NewScanner(r)
		for s.Scan() {
			*n++
		}
		return s.Err()
	}
}

func TestStream(t *testing.T) {
	ctx := context.Background()
	var n int
	assert.NoError(t, toolexec.Stream(ctx, lineRunner{n: 1000}, toolexec.Cmd{Name: "gen"}, countLines(&n)))
	expect.EQ(t, n, 1000)

	// The tool's failure is reported, not the pipe error the parser saw.
	n = 0
	toolErr := &toolexec.Error{Cmd: "gen", Err: fmt.Errorf("exit status 1")}
	err := toolexec.Stream(ctx, lineRunner{n: 10, err: toolErr}, toolexec.Cmd{Name: "gen"}, countLines(&n))
	expect.True(t, toolexec.IsToolError(err))

	// A parser that stops early does not block the tool.
	err = toolexec.Stream(ctx, lineRunner{n: 100000}, toolexec.Cmd{Name: "gen"}, func(r io.Reader) error {
		return errors.E(errors.Invalid, "bad line")
	})
	expect.True(t, errors.Is(errors.Invalid, err))

	// A parser that returns early without error drains the remainder.
	err = toolexec.Stream(ctx, lineRunner{n: 100000}, toolexec.Cmd{Name: "gen"}, func(r io.Reader) error {
		return nil
	})
	expect.NoError(t, err)
}
