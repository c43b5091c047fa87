package command

import (
	"errors"
	"testing"

	"chat-archive/internal/history"
)

func TestParse(t *testing.T) {
	cases := []struct {
		args []string
		want history.Selector
	}{
		{nil, history.ByCount(50)},
		{[]string{""}, history.ByCount(50)},
		{[]string{"1"}, history.ByCount(1)},
		{[]string{"500"}, history.ByCount(500)},
		{[]string{"today"}, history.ByCalendarDay(0)},
		{[]string{"Yesterday"}, history.ByCalendarDay(-1)},
		{[]string{"10", "extra"}, history.ByCount(10)},
	}
	for _, c := range cases {
		got, err := Parse(c.args)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.args, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %v, want %v", c.args, got, c.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"0":                    "Please provide a valid positive number.",
		"-3":                   "Please provide a valid positive number.",
		"501":                  "Maximum 500 messages. You requested 501.",
		"99999999999999999999": "Maximum 500 messages. You requested 99999999999999999999.",
		"tomorrow":             "Invalid argument 'tomorrow'.",
		"1.5":                  "Invalid argument '1.5'.",
	}
	for tok, reason := range cases {
		_, err := Parse([]string{tok})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Parse(%q): want ErrInvalidArgument, got %v", tok, err)
		}
		var ia *InvalidArgumentError
		if !errors.As(err, &ia) || ia.Value != tok || ia.Reason != reason {
			t.Fatalf("Parse(%q): unexpected error %+v", tok, ia)
		}
	}
}

func TestParseInvocation(t *testing.T) {
	name, args, ok := ParseInvocation("@bot please !Summarize yesterday now")
	if !ok || name != "summarize" || len(args) != 2 || args[0] != "yesterday" {
		t.Fatalf("unexpected parse: %q %q %v", name, args, ok)
	}
	if _, _, ok := ParseInvocation("no command here ! at all"); ok {
		t.Fatalf("bare prefix must not parse")
	}
}
