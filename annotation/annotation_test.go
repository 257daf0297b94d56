package annotation_test

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repenrich/annotation"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const rmskData = `   SW  perc perc perc  query      position in query           matching       repeat              position in  repeat
score  div. del. ins.  sequence    begin     end    (left)    repeat         class/family         begin  end (left)   ID

  463   1.3  0.6  1.7  chr1        10001   10468 (249240153) +  (CCCTAA)n      Simple_repeat            1  463    (0)      1
 3612  11.4 21.5  1.3  chr1        10469   11447 (249239174) C  TAR1           Satellite/telo       (399) 1712    483      2
  484  25.1 13.2  0.0  chr1        11505   11675 (249238946) C  L1MC5a         LINE/L1             (2382) 395    199      3
  239  29.4  1.9  1.0  chr1        11678   11780 (249238841) C  MER5B          DNA/hAT-Charlie      (74)  104      1      4
  318  23.0  3.7  0.0  chr2        15265   15355 (249234267) C  MIR3           SINE/MIR            (119)  143     49      5
  239  29.4  1.9  1.0  chr2        21678   21780 (249238841) C  MER5B          DNA/hAT-Charlie      (74)  104      1      6
`

func TestParse(t *testing.T) {
	records, err := annotation.Parse(strings.NewReader(rmskData), "rmsk.out", annotation.Opts{})
	assert.NoError(t, err)
	assert.EQ(t, len(records), 6)
	expect.EQ(t, records[0], annotation.Record{
		Name: "_CCCTAA_n", Chrom: "chr1", Start: 10001, End: 10468,
		Class: "Simple_repeat", Family: "Simple_repeat"})
	expect.EQ(t, records[1], annotation.Record{
		Name: "TAR1", Chrom: "chr1", Start: 10469, End: 11447,
		Class: "Satellite", Family: "telo"})
	expect.EQ(t, records[5].Name, "MER5B")
	expect.EQ(t, records[5].Chrom, "chr2")
	for _, rec := range records {
		expect.False(t, strings.ContainsAny(rec.Name, "()/"), "name %q", rec.Name)
	}
}

func TestParseSeparator(t *testing.T) {
	data := "1\tx\tx\tx\tchr3\t5\t9\t(0)\t+\tAlu/Y\tSINE/Alu\n"
	records, err := annotation.Parse(strings.NewReader(data), "tab.txt", annotation.Opts{Separator: "\t"})
	assert.NoError(t, err)
	assert.EQ(t, len(records), 1)
	expect.EQ(t, records[0], annotation.Record{
		Name: "Alu_Y", Chrom: "chr3", Start: 5, End: 9, Class: "SINE", Family: "Alu"})
}

func TestParseError(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{"# comment\n1 2 3 4 chr1 10 20 (0) + AluY\n", "bad.out:2: expect at least 11 fields"},
		{"\n\n1 2 3 4 chr1 ten 20 (0) + AluY SINE/Alu\n", "bad.out:3: start"},
		{"1 2 3 4 chr1 10 2x (0) + AluY SINE/Alu\n", "bad.out:1: end"},
		{"1 2 3 4 chr1 30 20 (0) + AluY SINE/Alu\n", "bad.out:1: invalid interval"},
	}
	for _, test := range tests {
		_, err := annotation.Parse(strings.NewReader(test.data), "bad.out", annotation.Opts{})
		assert.NotNil(t, err)
		expect.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
		expect.HasSubstr(t, err.Error(), test.want)
	}
}

func TestNormalizeName(t *testing.T) {
	expect.EQ(t, annotation.NormalizeName("(CCCTAA)n"), "_CCCTAA_n")
	expect.EQ(t, annotation.NormalizeName("L1/ORF2"), "L1_ORF2")
	expect.EQ(t, annotation.NormalizeName("AluY"), "AluY")
}

func TestParseClassFamily(t *testing.T) {
	c, f := annotation.ParseClassFamily("LINE/L1")
	expect.EQ(t, c, "LINE")
	expect.EQ(t, f, "L1")
	c, f = annotation.ParseClassFamily("Low_complexity")
	expect.EQ(t, c, "Low_complexity")
	expect.EQ(t, f, "Low_complexity")
}

func TestGroupByName(t *testing.T) {
	records, err := annotation.Parse(strings.NewReader(rmskData), "rmsk.out", annotation.Opts{})
	assert.NoError(t, err)
	groups := annotation.GroupByName(records)
	assert.EQ(t, len(groups), 5)
	expect.EQ(t, groups[0].Name, "_CCCTAA_n")
	expect.EQ(t, groups[3].Name, "MER5B")
	assert.EQ(t, len(groups[3].Records), 2)
	expect.EQ(t, groups[3].Records[0].Start, 11678)
	expect.EQ(t, groups[3].Records[1].Start, 21678)
}

func TestElementTable(t *testing.T) {
	records := []annotation.Record{
		{Name: "L1", Class: "LINE", Family: "L1"},
		{Name: "AluY", Class: "SINE", Family: "Alu"},
		{Name: "L1", Class: "LINE", Family: "L1"},
	}
	table, err := annotation.NewElementTable(records, true)
	assert.NoError(t, err)
	expect.EQ(t, table.Names(), []string{"AluY", "L1"})
	e, ok := table.Lookup("AluY")
	expect.True(t, ok)
	expect.EQ(t, e, annotation.Element{Name: "AluY", Class: "SINE", Family: "Alu"})
	_, ok = table.Lookup("MIR")
	expect.False(t, ok)
}

func TestElementTableConflict(t *testing.T) {
	records := []annotation.Record{
		{Name: "X", Class: "LINE", Family: "L1"},
		{Name: "X", Class: "LINE", Family: "L2"},
	}
	table, err := annotation.NewElementTable(records, false)
	assert.NoError(t, err)
	e, _ := table.Lookup("X")
	expect.EQ(t, e.Family, "L2")

	_, err = annotation.NewElementTable(records, true)
	expect.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
	expect.HasSubstr(t, err.Error(), "conflicting class/family")
}

func TestWriteBEDAndRepeatIDs(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	records, err := annotation.Parse(strings.NewReader(rmskData), "rmsk.out", annotation.Opts{})
	assert.NoError(t, err)

	bedPath := filepath.Join(tmpdir, "repnames.bed")
	assert.NoError(t, annotation.WriteBED(ctx, bedPath, records))
	got, err := ioutil.ReadFile(bedPath)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(got), "\n"), "\n")
	assert.EQ(t, len(lines), 6)
	expect.EQ(t, lines[0], "chr1\t10001\t10468\t_CCCTAA_n")
	expect.EQ(t, lines[4], "chr2\t15265\t15355\tMIR3")

	table, err := annotation.NewElementTable(records, true)
	assert.NoError(t, err)
	idsPath := filepath.Join(tmpdir, "repeatIDs.txt")
	assert.NoError(t, annotation.WriteRepeatIDs(ctx, idsPath, table))
	got, err = ioutil.ReadFile(idsPath)
	assert.NoError(t, err)
	expect.EQ(t, string(got), "L1MC5a\t0\nMER5B\t1\nMIR3\t2\nTAR1\t3\n_CCCTAA_n\t4\n")
}
