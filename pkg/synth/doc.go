// Package synth searches for the initial value of register A that makes a
// tribit program print a given output, most often the program's own
// stream.
//
// The search leans on the shape of self-reproducing programs: each loop
// iteration emits a value that depends on the low bits of A and then shifts
// A right by three. The last value printed therefore depends only on the
// highest octal digit of A, the one before it on the two highest digits, and
// so on. FindSeed builds A one octal digit at a time, from the most
// significant end, and requires that the candidate so far reproduces a
// suffix of the target one value longer than the previous level. Digits are
// tried in ascending order and the minimum over every complete match is
// returned; once a match is known, subtrees whose smallest reachable value
// cannot beat it are skipped.
//
// Runs that hit the step limit count as mismatches. A program with no
// matching seed yields Result.Found == false, never an error.
package synth
