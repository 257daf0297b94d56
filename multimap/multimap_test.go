package multimap_test

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repenrich/annotation"
	"github.com/grailbio/repenrich/multimap"
	"github.com/grailbio/repenrich/toolexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "AluY,L1", multimap.GroupKey([]string{"L1", "AluY"}))
	assert.Equal(t, "MIR", multimap.GroupKey([]string{"MIR"}))
	in := []string{"b", "a"}
	multimap.GroupKey(in)
	assert.Equal(t, []string{"b", "a"}, in, "input must not be reordered")
}

func TestApportionExample(t *testing.T) {
	acc := multimap.NewAccumulator()
	acc.Add("AluY", []string{"read1"})
	acc.Add("L1", []string{"read1"})
	r, err := multimap.Apportion(acc)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"AluY": 0.5, "L1": 0.5}, r.Fractions)
	assert.Equal(t, map[string]int64{"AluY,L1": 1}, r.Groups)
	assert.Equal(t, int64(1), r.Reads)
}

func TestAccumulatorIdempotent(t *testing.T) {
	acc := multimap.NewAccumulator()
	acc.Add("AluY", []string{"r1", "r2"})
	acc.Add("L1", []string{"r1"})
	acc.Add("AluY", []string{"r1"})
	acc.Add("MIR", nil)
	assert.Equal(t, 2, acc.Len())
	assert.Equal(t, []string{"AluY", "L1"}, acc.Elements("r1"))
	assert.Nil(t, acc.Elements("r3"))

	r, err := multimap.Apportion(acc)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"AluY": 1.5, "L1": 0.5, "MIR": 0}, r.Fractions)
	assert.Equal(t, map[string]int64{"AluY": 1, "AluY,L1": 1}, r.Groups)
}

func TestApportionCommaInName(t *testing.T) {
	acc := multimap.NewAccumulator()
	acc.Add("a,b", []string{"r1"})
	acc.Add("a", []string{"r2"})
	acc.Add("b", []string{"r2"})
	r, err := multimap.Apportion(acc)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a,b": 1, "a": 0.5, "b": 0.5}, r.Fractions)
	assert.Equal(t, map[string]int64{"a,b": 2}, r.Groups)
	assert.Equal(t, int64(2), r.Reads)
}

type alignment struct{ element, read string }

func randomAlignments(seed int64, nReads, nElements int) []alignment {
	rnd := rand.New(rand.NewSource(seed))
	var out []alignment
	for i := 0; i < nReads; i++ {
		for e := 0; e < nElements; e++ {
			if rnd.Intn(3) == 0 {
				out = append(out, alignment{fmt.Sprintf("rep%d", e), fmt.Sprintf("read%d", i)})
			}
		}
	}
	return out
}

func accumulate(alignments []alignment) *multimap.Accumulator {
	acc := multimap.NewAccumulator()
	for _, a := range alignments {
		acc.Add(a.element, []string{a.read})
	}
	return acc
}

func TestApportionConservation(t *testing.T) {
	alignments := randomAlignments(1, 500, 7)
	reads := map[string]bool{}
	for _, a := range alignments {
		reads[a.read] = true
	}
	r, err := multimap.Apportion(accumulate(alignments))
	require.NoError(t, err)
	assert.Equal(t, int64(len(reads)), r.Reads)

	var total float64
	for _, f := range r.Fractions {
		total += f
	}
	assert.InDelta(t, float64(len(reads)), total, 1e-6)

	var grouped int64
	for _, n := range r.Groups {
		grouped += n
	}
	assert.Equal(t, r.Reads, grouped)
}

func TestApportionOrderIndependent(t *testing.T) {
	alignments := randomAlignments(2, 300, 5)
	want, err := multimap.Apportion(accumulate(alignments))
	require.NoError(t, err)
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 5; i++ {
		shuffled := append([]alignment(nil), alignments...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := multimap.Apportion(accumulate(shuffled))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func testTable(t *testing.T) *annotation.ElementTable {
	table, err := annotation.NewElementTable([]annotation.Record{
		{Name: "AluY", Class: "SINE", Family: "Alu"},
		{Name: "AluSx", Class: "SINE", Family: "Alu"},
		{Name: "MIR", Class: "SINE", Family: "MIR"},
		{Name: "L1", Class: "LINE", Family: "L1"},
	}, false)
	require.NoError(t, err)
	return table
}

func TestRollup(t *testing.T) {
	fractions := map[string]float64{"AluY": 1.5, "AluSx": 0.25, "MIR": 1, "L1": 0.25}
	classes, families, err := multimap.Rollup(fractions, testTable(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"SINE": 2.75, "LINE": 0.25}, classes)
	assert.Equal(t, map[string]float64{"Alu": 1.75, "MIR": 1, "L1": 0.25}, families)

	_, _, err = multimap.Rollup(map[string]float64{"Unknown": 1}, testTable(t))
	assert.True(t, errors.Is(errors.Invalid, err))
}

type fakeAligner struct {
	mu    sync.Mutex
	hits  map[string][]string
	fail  string
	calls []string
}

func (f *fakeAligner) Align(ctx context.Context, element string) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, element)
	f.mu.Unlock()
	if element == f.fail {
		return nil, &toolexec.Error{Cmd: "bowtie2 -x " + element, Err: fmt.Errorf("exit status 1")}
	}
	return f.hits[element], nil
}

func TestResolve(t *testing.T) {
	hits := map[string][]string{
		"AluY": {"r1", "r2", "r3"},
		"L1":   {"r1", "r4"},
		"MIR":  {"r3"},
		"TAR1": nil,
	}
	elements := []string{"AluY", "L1", "MIR", "TAR1"}
	var results []multimap.Result
	for _, parallelism := range []int{0, 1, 4} {
		acc, err := multimap.Resolve(context.Background(), elements, &fakeAligner{hits: hits}, parallelism)
		require.NoError(t, err)
		r, err := multimap.Apportion(acc)
		require.NoError(t, err)
		results = append(results, r)
	}
	want := multimap.Result{
		Fractions: map[string]float64{"AluY": 2, "L1": 1.5, "MIR": 0.5, "TAR1": 0},
		Groups:    map[string]int64{"AluY": 1, "AluY,L1": 1, "AluY,MIR": 1, "L1": 1},
		Reads:     4,
	}
	for _, r := range results {
		assert.Equal(t, want, r)
	}
}

func TestResolveFailFast(t *testing.T) {
	f := &fakeAligner{hits: map[string][]string{"AluY": {"r1"}}, fail: "L1"}
	_, err := multimap.Resolve(context.Background(), []string{"AluY", "L1", "MIR"}, f, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "L1")
	assert.True(t, toolexec.IsToolError(err))
}

// blockingAligner fails A once B is running, and holds B until its context
// is cancelled.
type blockingAligner struct {
	bStarted  chan struct{}
	cancelled chan struct{}
}

func (b *blockingAligner) Align(ctx context.Context, element string) ([]string, error) {
	switch element {
	case "A":
		select {
		case <-b.bStarted:
		case <-time.After(10 * time.Second):
		}
		return nil, &toolexec.Error{Cmd: "bowtie2 -x A", Err: fmt.Errorf("exit status 1")}
	case "B":
		close(b.bStarted)
		select {
		case <-ctx.Done():
			close(b.cancelled)
			return nil, ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
	return nil, nil
}

func TestResolveCancelsRunningAlignments(t *testing.T) {
	b := &blockingAligner{bStarted: make(chan struct{}), cancelled: make(chan struct{})}
	start := time.Now()
	_, err := multimap.Resolve(context.Background(), []string{"A", "B", "C"}, b, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element A")
	assert.True(t, toolexec.IsToolError(err))
	assert.True(t, time.Since(start) < 5*time.Second)
	select {
	case <-b.cancelled:
	default:
		t.Error("alignment of B did not observe cancellation")
	}
}

func TestBowtie2Args(t *testing.T) {
	b := multimap.Bowtie2{IndexDir: "/setup", FASTQ: "mm.fq", Threads: 4}
	assert.Equal(t,
		[]string{"-k", "1", "-p", "4", "--quiet", "--no-hd", "--no-unal", "-x", "/setup/AluY", "-U", "mm.fq"},
		b.Args("AluY"))
	b.FASTQ2 = "mm_2.fq"
	b.Threads = 0
	assert.Equal(t,
		[]string{"-k", "1", "-p", "1", "--quiet", "--no-hd", "--no-unal", "-x", "/setup/AluY", "-1", "mm.fq", "-2", "mm_2.fq"},
		b.Args("AluY"))
}

const testSAM = "r1/1\t0\tAluY\t10\t255\t4M\t*\t0\t0\tACGT\tIIII\n" +
	"r1/2\t16\tAluY\t40\t255\t4M\t*\t0\t0\tACGT\tIIII\n" +
	"r2 extra\t0\tAluY\t90\t255\t4M\t*\t0\t0\tACGT\tIIII\n" +
	"r3\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\tIIII\n" +
	"r4\t256\tAluY\t200\t255\t4M\t*\t0\t0\tACGT\tIIII\n"

func TestAlignedReadIDs(t *testing.T) {
	ids, err := multimap.AlignedReadIDs(strings.NewReader("@HD\tVN:1.0\n"+testSAM), "AluY")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r4"}, ids)

	_, err = multimap.AlignedReadIDs(strings.NewReader("r1\n"), "AluY")
	assert.True(t, errors.Is(errors.Invalid, err))
	_, err = multimap.AlignedReadIDs(strings.NewReader("r1\tx\tAluY\n"), "AluY")
	assert.True(t, errors.Is(errors.Invalid, err))
}

type fakeBowtie2 struct {
	sam  string
	args []string
}

func (f *fakeBowtie2) Run(ctx context.Context, cmd toolexec.Cmd) error {
	if cmd.Name != "bowtie2" {
		return fmt.Errorf("unexpected tool %s", cmd.Name)
	}
	f.args = cmd.Args
	_, err := io.WriteString(cmd.Stdout, f.sam)
	return err
}

func TestBowtie2Align(t *testing.T) {
	runner := &fakeBowtie2{sam: testSAM}
	b := multimap.Bowtie2{Runner: runner, IndexDir: "setup", FASTQ: "mm.fq", Threads: 2}
	ids, err := b.Align(context.Background(), "AluY")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r4"}, ids)
	assert.Contains(t, runner.args, "setup/AluY")
}
