package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atinyakov/totpkeeper/internal/models"
)

// ErrInvalidSelection is returned when the answer to a selection prompt is
// not one of the listed numbers.
var ErrInvalidSelection = errors.New("invalid selection")

// Prompter reads answers from the operator line by line.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
	st      styles
}

// NewPrompter creates a Prompter reading from in and writing prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		scanner: bufio.NewScanner(in),
		out:     out,
		st:      newStyles(out),
	}
}

func (p *Prompter) ask(question string) string {
	fmt.Fprint(p.out, question)
	if !p.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(p.scanner.Text())
}

// ShowList prints records as a numbered list.
func (p *Prompter) ShowList(records []models.SecretRecord) {
	rule := p.st.muted.Render(strings.Repeat("-", 60))
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.st.title.Render("Found emails:"))
	fmt.Fprintln(p.out, rule)
	for i, rec := range records {
		fmt.Fprintf(p.out, "%d. %s\n", i+1, rec.Identity)
	}
	fmt.Fprintln(p.out, rule)
}

// Select lists records and asks for a number. It returns false when the
// operator pressed Enter without choosing.
func (p *Prompter) Select(records []models.SecretRecord, question string) (models.SecretRecord, bool, error) {
	p.ShowList(records)

	answer := p.ask("\n" + question)
	if answer == "" {
		return models.SecretRecord{}, false, nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil {
		return models.SecretRecord{}, false, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, answer)
	}
	if n < 1 || n > len(records) {
		return models.SecretRecord{}, false, fmt.Errorf("%w: %d is out of range", ErrInvalidSelection, n)
	}
	return records[n-1], true, nil
}

// Confirm asks a yes/no question; only "yes" counts as agreement.
func (p *Prompter) Confirm(question string) bool {
	return strings.EqualFold(p.ask(question+" (yes/no): "), "yes")
}
