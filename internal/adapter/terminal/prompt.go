// Package terminal asks the operator to settle a reversed date range.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
)

// Prompt implements domain.DateConflictResolver over a line-oriented
// terminal: "s" swaps the dates, "q" quits, anything else asks again.
type Prompt struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompt reads answers from in and writes questions to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewScanner(in), out: out}
}

// ResolveDateConflict asks until it gets a recognized answer. End of input
// is an error.
func (p *Prompt) ResolveDateConflict(start, end domain.Date) (domain.ConflictChoice, error) {
	fmt.Fprintf(p.out, "\nstart_date (%s) is after end_date (%s). Do you want to swap the values [s] or quit the program [q]? ", start, end)
	for {
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return domain.ChoiceAbort, fmt.Errorf("read answer: %w", err)
			}
			return domain.ChoiceAbort, errors.New("read answer: no input")
		}

		switch strings.ToLower(strings.TrimSpace(p.in.Text())) {
		case "s":
			return domain.ChoiceSwap, nil
		case "q":
			return domain.ChoiceAbort, nil
		}
		fmt.Fprint(p.out, "Input not recognized. Please type either [s] to switch, or [q] to quit. ")
	}
}
