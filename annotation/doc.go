// Package annotation parses RepeatMasker annotation tables into repeat
// records.
//
// A RepeatMasker ".out" table is whitespace aligned; a row describes one
// genomic copy of a repeat:
//
//    SW  perc perc perc  query  position in query  matching  repeat       ...
//   463   1.3  0.6  1.7  chr1      10001   10468  (249240153) +  (CCCTAA)n  Simple_repeat  ...
//
// Only rows whose first field is an integer are records; the header and
// blank lines are skipped. The columns used are chromosome (5th), start
// (6th), end (7th), repeat name (10th) and class/family (11th).
//
// Repeat names double as file names and map keys downstream, so '(', ')' and
// '/' are replaced with '_'.
package annotation
