package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/syssam/sqm"
	"github.com/syssam/sqm/query/plan"
)

// param is a -p flag value. Numeric names are positions.
type param struct {
	name  string
	pos   int
	value any
}

func parseParams(flags []string) ([]param, error) {
	ps := make([]param, 0, len(flags))
	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q is not name=value", f)
		}
		p := param{name: name, value: parseValue(raw)}
		if pos, err := strconv.Atoi(name); err == nil {
			if pos < 1 {
				return nil, fmt.Errorf("parameter position %d is not positive", pos)
			}
			p.name, p.pos = "", pos
		}
		ps = append(ps, p)
	}
	return ps, nil
}

// parseValue reads integers, floats, booleans and null, and keeps anything
// else as a string. Single quotes force a string.
func parseValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return raw[1 : len(raw)-1]
	}
	if raw == "null" {
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// binder is implemented by both query kinds.
type binder[Q any] interface {
	SetParameter(string, any) Q
	SetPositionalParameter(int, any) Q
}

func bind[Q binder[Q]](q Q, ps []param) Q {
	for _, p := range ps {
		if p.name != "" {
			q = q.SetParameter(p.name, p.value)
		} else {
			q = q.SetPositionalParameter(p.pos, p.value)
		}
	}
	return q
}

// enableFilters enables the --filter flags of the form
// name or name:param=value,param=value.
func enableFilters(s *sqm.Session, flags []string) error {
	for _, f := range flags {
		name, rest, _ := strings.Cut(f, ":")
		b, err := s.EnableFilter(name)
		if err != nil {
			return err
		}
		if rest == "" {
			continue
		}
		ps, err := parseParams(strings.Split(rest, ","))
		if err != nil {
			return fmt.Errorf("filter %q: %w", name, err)
		}
		for _, p := range ps {
			if p.name == "" {
				return fmt.Errorf("filter %q: parameters are named", name)
			}
			b.SetParameter(p.name, p.value)
		}
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// printRows writes one line per row, columns in name order.
func printRows(w io.Writer, rows []plan.Row) {
	key := color.New(color.FgCyan)
	for _, row := range rows {
		for i, c := range slices.Sorted(maps.Keys(row)) {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			key.Fprint(w, c)
			fmt.Fprintf(w, "=%v", row[c])
		}
		fmt.Fprintln(w)
	}
	color.New(color.Faint).Fprintf(w, "(%d rows)\n", len(rows))
}
