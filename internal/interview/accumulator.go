package interview

import "strings"

// accumulator collects final transcript fragments for the current answer.
// Not safe for concurrent use; the owning session guards it.
type accumulator struct {
	parts []string
}

// Add appends one final fragment in arrival order.
func (a *accumulator) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.parts = append(a.parts, text)
}

// Flush returns the space-joined fragments and resets the accumulator.
func (a *accumulator) Flush() string {
	if len(a.parts) == 0 {
		return ""
	}
	out := strings.Join(a.parts, " ")
	a.parts = nil
	return out
}

func (a *accumulator) Empty() bool {
	return len(a.parts) == 0
}
