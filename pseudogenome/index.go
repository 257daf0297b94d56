package pseudogenome

import (
	"context"
	"strconv"

	"github.com/grailbio/repenrich/toolexec"
)

// Bowtie2Indexer builds indexes with bowtie2-build.
type Bowtie2Indexer struct {
	Runner toolexec.Runner
	// Threads is passed as --threads when positive.
	Threads int
}

// BuildIndex implements Indexer.
func (x Bowtie2Indexer) BuildIndex(ctx context.Context, fastaPath, prefix string) error {
	args := []string{"-q", "-f"}
	if x.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(x.Threads))
	}
	args = append(args, fastaPath, prefix)
	return x.Runner.Run(ctx, toolexec.Cmd{Name: "bowtie2-build", Args: args})
}
