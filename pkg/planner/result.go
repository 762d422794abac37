package planner

import (
	"fmt"
	"pagedb/pkg/table"
	"strings"
	"time"
)

// Step is one operator run of a query.
type Step struct {
	Operator string
	Inputs   []string
	Output   string
	Filter   string
	Records  int
}

func (s Step) String() string {
	out := fmt.Sprintf("%s(%s) -> %s [%d records]", s.Operator, strings.Join(s.Inputs, ", "), s.Output, s.Records)
	if s.Filter != "" {
		out += " where " + s.Filter
	}
	return out
}

// Result is the outcome of a query: the table holding its records and the
// steps that produced it.
type Result struct {
	Output  *table.Table
	Steps   []Step
	Elapsed time.Duration
}

func (r *Result) add(s Step) {
	r.Steps = append(r.Steps, s)
}

func (r *Result) String() string {
	var b strings.Builder
	for i, s := range r.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}
