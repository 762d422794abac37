package planner

import (
	"fmt"
	"io"
	"os"
	"pagedb/pkg/execution/aggregation"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// TableRef names an input table and the alias expressions use for it.
type TableRef struct {
	Name  string `yaml:"name"`
	Alias string `yaml:"alias,omitempty"`
}

// alias returns the alias, defaulting to the table name.
func (r TableRef) alias() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// SelectItem is one output column: a regular expression, or an aggregate of
// Expr when Agg is set.
type SelectItem struct {
	Expr string `yaml:"expr"`
	Agg  string `yaml:"agg,omitempty"`
}

// Query is a select-from-where query over one or two tables. Each Where
// entry is one conjunct.
//
//	tables: [{name: orders, alias: o}, {name: customers, alias: c}]
//	select:
//	  - {expr: "[o.cust]"}
//	  - {agg: sum, expr: "[o.total]"}
//	where:
//	  - "== ([o.cust], [c.id])"
type Query struct {
	Tables []TableRef   `yaml:"tables"`
	Select []SelectItem `yaml:"select"`
	Where  []string     `yaml:"where,omitempty"`
}

// ParseQuery decodes a YAML query document and validates it.
func ParseQuery(r io.Reader) (*Query, error) {
	var q Query
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&q); err != nil {
		return nil, errors.Wrap(err, "decode query")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// ParseQueryFile reads the query document at path.
func ParseQueryFile(path string) (*Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open query %s", path)
	}
	defer f.Close()
	return ParseQuery(f)
}

// Validate checks the shape of the query. Expressions are checked when the
// query is planned.
func (q *Query) Validate() error {
	switch len(q.Tables) {
	case 1, 2:
	default:
		return fmt.Errorf("query needs one or two tables, got %d", len(q.Tables))
	}
	for i, t := range q.Tables {
		if t.Name == "" {
			return fmt.Errorf("table %d has no name", i)
		}
	}
	if len(q.Tables) == 2 && q.Tables[0].alias() == q.Tables[1].alias() {
		return fmt.Errorf("tables share the alias %q", q.Tables[0].alias())
	}

	if len(q.Select) == 0 {
		return fmt.Errorf("query selects nothing")
	}
	for i, item := range q.Select {
		if strings.TrimSpace(item.Expr) == "" {
			return fmt.Errorf("select item %d has no expression", i)
		}
		if item.Agg != "" {
			if _, err := aggregation.ParseAggKind(item.Agg); err != nil {
				return errors.Wrapf(err, "select item %d", i)
			}
		}
	}
	for i, w := range q.Where {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("where clause %d is empty", i)
		}
	}
	return nil
}

func (q *Query) hasAggregates() bool {
	for _, item := range q.Select {
		if item.Agg != "" {
			return true
		}
	}
	return false
}
