// Package dataset loads labeled sentence-pair classification data and
// prepares batched, tokenized model inputs.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"strconv"
	"strings"

	roaring "github.com/RoaringBitmap/roaring"
)

// Common error types for dataset loading
var (
	ErrBadRecord  = errors.New("malformed dataset record")
	ErrNoExamples = errors.New("dataset contains no examples")
)

// Example is one labeled classification example. TextB is empty for
// single-sentence tasks.
type Example struct {
	TextA string
	TextB string
	Label int
}

// LoadOptions controls dataset loading.
type LoadOptions struct {
	// MaxExamples caps the number of loaded examples; 0 means unlimited.
	MaxExamples int
	// Dedup drops examples whose content fingerprint was already seen.
	Dedup bool
}

// Dataset is an in-memory ordered collection of examples.
type Dataset struct {
	Examples []Example
}

// LoadTSV reads a tab-separated file of `label<TAB>textA[<TAB>textB]`
// records. Blank lines and lines starting with '#' are skipped.
func LoadTSV(path string, opts LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var seen *roaring.Bitmap
	if opts.Dedup {
		seen = roaring.New()
	}

	ds := &Dataset{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields, want at least 2", ErrBadRecord, lineNo, len(fields))
		}
		label, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d has non-integer label %q", ErrBadRecord, lineNo, fields[0])
		}
		ex := Example{TextA: fields[1], Label: label}
		if len(fields) > 2 {
			ex.TextB = fields[2]
		}
		if seen != nil {
			fp := fingerprint(ex)
			if seen.Contains(fp) {
				continue
			}
			seen.Add(fp)
		}
		ds.Examples = append(ds.Examples, ex)
		if opts.MaxExamples > 0 && len(ds.Examples) >= opts.MaxExamples {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(ds.Examples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExamples, path)
	}
	return ds, nil
}

// fingerprint hashes example content into the 32-bit space the dedup bitmap
// tracks.
func fingerprint(ex Example) uint32 {
	h := fnv.New32a()
	h.Write([]byte(ex.TextA))
	h.Write([]byte{'\t'})
	h.Write([]byte(ex.TextB))
	h.Write([]byte{'\t'})
	h.Write([]byte(strconv.Itoa(ex.Label)))
	return h.Sum32()
}

// Len returns the number of examples.
func (d *Dataset) Len() int { return len(d.Examples) }

// HasPairs reports whether any example carries a second sentence.
func (d *Dataset) HasPairs() bool {
	for _, ex := range d.Examples {
		if ex.TextB != "" {
			return true
		}
	}
	return false
}

// Shuffle permutes examples in place, deterministically for a given seed.
func (d *Dataset) Shuffle(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(d.Examples), func(i, j int) {
		d.Examples[i], d.Examples[j] = d.Examples[j], d.Examples[i]
	})
}

// Split partitions the dataset into train and eval slices, with evalFrac of
// the examples (at least one when possible) going to eval.
func (d *Dataset) Split(evalFrac float64) (train, eval *Dataset) {
	n := len(d.Examples)
	k := int(float64(n) * evalFrac)
	if k == 0 && n > 1 && evalFrac > 0 {
		k = 1
	}
	return &Dataset{Examples: d.Examples[:n-k]}, &Dataset{Examples: d.Examples[n-k:]}
}

// Batches groups examples into consecutive batches of at most size examples,
// preserving order. The final batch may be short.
func (d *Dataset) Batches(size int) [][]Example {
	if size <= 0 {
		size = 32
	}
	var out [][]Example
	for i := 0; i < len(d.Examples); i += size {
		end := i + size
		if end > len(d.Examples) {
			end = len(d.Examples)
		}
		out = append(out, d.Examples[i:end])
	}
	return out
}
