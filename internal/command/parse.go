// Package command turns reporting command invocations into history
// selections and renders every outcome as chat text.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chat-archive/internal/history"
)

const (
	DefaultCount = 50
	MaxCount     = 500
	Prefix       = "!"
)

var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError carries the offending token and a user facing reason.
type InvalidArgumentError struct {
	Value  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Value, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// Parse maps the first argument token to a selector. No token means the
// default count; tokens after the first are ignored.
func Parse(args []string) (history.Selector, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return history.ByCount(DefaultCount), nil
	}
	tok := strings.TrimSpace(args[0])

	switch strings.ToLower(tok) {
	case "today":
		return history.ByCalendarDay(0), nil
	case "yesterday":
		return history.ByCalendarDay(-1), nil
	}

	n, err := strconv.Atoi(tok)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) && !strings.HasPrefix(tok, "-") {
			return history.Selector{}, &InvalidArgumentError{Value: tok, Reason: fmt.Sprintf("Maximum %d messages. You requested %s.", MaxCount, tok)}
		}
		return history.Selector{}, &InvalidArgumentError{Value: tok, Reason: fmt.Sprintf("Invalid argument '%s'.", tok)}
	}
	if n <= 0 {
		return history.Selector{}, &InvalidArgumentError{Value: tok, Reason: "Please provide a valid positive number."}
	}
	if n > MaxCount {
		return history.Selector{}, &InvalidArgumentError{Value: tok, Reason: fmt.Sprintf("Maximum %d messages. You requested %d.", MaxCount, n)}
	}
	return history.ByCount(n), nil
}

// ParseInvocation finds the first "!name" token in text and returns the
// lowercased name with the tokens that follow it.
func ParseInvocation(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	for i, f := range fields {
		if len(f) > len(Prefix) && strings.HasPrefix(f, Prefix) {
			return strings.ToLower(strings.TrimPrefix(f, Prefix)), fields[i+1:], true
		}
	}
	return "", nil, false
}
