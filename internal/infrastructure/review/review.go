// Package review provides the Reviewer implementations used to classify
// products automatic matching could not place.
package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/msrptw/backend/internal/domain"
)

// Terminal prompts an operator on a line-oriented terminal. Input is read by
// a background goroutine so a cancelled context ends a pending prompt.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer

	readOnce sync.Once
	lines    chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewTerminal creates a reviewer reading answers from in and writing prompts to out
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, lines: make(chan readResult)}
}

// Prompt prints the product and its numbered options and reads one line.
// End of input or a cancelled context returns domain.ErrReviewAborted.
func (t *Terminal) Prompt(ctx context.Context, prompt domain.ReviewPrompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrReviewAborted, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s (%s)\n", prompt.Name, prompt.Origin)
	for i, option := range prompt.Options {
		fmt.Fprintf(&b, "  (%d): %s\n", i, option)
	}
	if prompt.Suggestion != "" {
		fmt.Fprintf(&b, "  suggested: %s\n", prompt.Suggestion)
	}
	b.WriteString("choose a part, or press Enter to skip: ")
	if _, err := io.WriteString(t.out, b.String()); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrReviewAborted, err)
	}

	line, err := t.readLine(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", domain.ErrReviewAborted
		}
		return "", fmt.Errorf("%w: %v", domain.ErrReviewAborted, err)
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	t.readOnce.Do(func() { go t.readLoop() })

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", domain.ErrReviewAborted, ctx.Err())
	case r, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

// readLoop hands lines to readLine one at a time and closes lines after the
// first read error.
func (t *Terminal) readLoop() {
	defer close(t.lines)
	for {
		line, err := t.in.ReadString('\n')
		t.lines <- readResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// Scripted replays prepared answers in order; once they run out it aborts.
// It is safe for concurrent use.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	prompts []domain.ReviewPrompt
}

// NewScripted creates a reviewer answering with the given lines
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// Prompt returns the next prepared answer
func (s *Scripted) Prompt(ctx context.Context, prompt domain.ReviewPrompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return "", domain.ErrReviewAborted
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Prompts returns every prompt shown so far, in order
func (s *Scripted) Prompts() []domain.ReviewPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ReviewPrompt(nil), s.prompts...)
}

// SkipAll skips every product; used for unattended runs
type SkipAll struct{}

// Prompt always answers with an empty line
func (SkipAll) Prompt(ctx context.Context, prompt domain.ReviewPrompt) (string, error) {
	return "", nil
}

// New returns the reviewer for a configured mode
func New(mode string, in io.Reader, out io.Writer) (domain.Reviewer, error) {
	switch mode {
	case "terminal":
		return NewTerminal(in, out), nil
	case "skip":
		return SkipAll{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown review mode %q", domain.ErrInvalidRequest, mode)
	}
}
