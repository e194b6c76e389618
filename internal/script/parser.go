// Package script runs allocation scripts against a pool. A script starts with the number of cases on
// its first line, followed by a blank line. Each case is a run of non-blank lines holding one non-zero
// integer each, and cases are separated by a single blank line. A positive integer n allocates n
// elements; a negative integer -k deallocates the k-th allocated block, counting from the start of the
// pool.
package script

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/memutils"
)

// Case is a single run of script steps, executed against a fresh pool
type Case struct {
	// Line is the script line of the first step, or of the blank line ending an empty case
	Line  int
	Steps []int
}

type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func (r *lineReader) next() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}

	r.line++
	return strings.TrimSpace(r.scanner.Text()), true
}

// Parse reads a complete script. An error wrapping memutils.ErrInvalidArgument identifies the first
// malformed line.
func Parse(reader io.Reader) ([]Case, error) {
	lines := &lineReader{scanner: bufio.NewScanner(reader)}

	text, ok := lines.next()
	if !ok {
		if err := lines.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to read script")
		}
		return nil, errors.Wrap(memutils.ErrInvalidArgument, "script is empty")
	}

	caseCount, err := strconv.Atoi(text)
	if err != nil || caseCount < 0 {
		return nil, errors.Wrapf(memutils.ErrInvalidArgument, "line 1: expected a case count, found %q", text)
	}

	text, ok = lines.next()
	if ok && text != "" {
		return nil, errors.Wrapf(memutils.ErrInvalidArgument, "line 2: expected a blank line after the case count, found %q", text)
	}

	cases := make([]Case, 0, caseCount)
	for len(cases) < caseCount {
		if !ok {
			break
		}

		current := Case{Line: lines.line + 1}
		for {
			text, ok = lines.next()
			if !ok || text == "" {
				break
			}

			step, err := strconv.Atoi(text)
			if err != nil || step == 0 {
				return nil, errors.Wrapf(memutils.ErrInvalidArgument, "line %d: expected a non-zero integer, found %q", lines.line, text)
			}

			current.Steps = append(current.Steps, step)
		}

		cases = append(cases, current)
	}

	if err := lines.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read script")
	}

	if len(cases) < caseCount {
		return nil, errors.Wrapf(memutils.ErrInvalidArgument, "script declares %d cases but holds only %d", caseCount, len(cases))
	}

	return cases, nil
}
