package presence

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable marks a source file that is missing or unreadable.
var ErrSourceUnavailable = errors.New("source unavailable")

// Skip records one source row that was dropped during parsing.
type Skip struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (s Skip) String() string { return fmt.Sprintf("line %d: %s", s.Line, s.Reason) }

// ParseReport summarizes a tolerant parse pass.
type ParseReport struct {
	Accepted int    `json:"accepted"`
	Skipped  []Skip `json:"skipped,omitempty"`
}

// Skipf appends a skipped row to the report.
func (r *ParseReport) Skipf(line int, format string, args ...any) {
	r.Skipped = append(r.Skipped, Skip{Line: line, Reason: fmt.Sprintf(format, args...)})
}
