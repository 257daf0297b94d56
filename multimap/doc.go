// Package multimap apportions reads that align to more than one repeat
// element.
//
// Each ambiguous read is aligned separately against the pseudogenome of every
// element. A read that aligned to k distinct elements adds 1/k to each of
// them, so the total fractional mass equals the number of distinct reads that
// aligned anywhere. The reads are also counted by their exact element set,
// keyed by GroupKey.
//
// Alignment runs one task per element in a bounded worker pool (Resolve).
// The per-element results are merged into an Accumulator in a single thread,
// and Apportion and Rollup are pure functions of the accumulated state.
package multimap
