package tree

import (
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/syssam/sqm/querylanguage"
)

var (
	// ErrUndeclaredParameter is returned when binding a parameter the statement does not declare.
	ErrUndeclaredParameter = errors.New("tree: undeclared parameter")
	// ErrUnboundParameter is returned when executing a statement with a declared parameter left unbound.
	ErrUnboundParameter = errors.New("tree: unbound parameter")
)

var emptyMetadata = NewParameterMetadata(nil)

// ParameterMetadata describes the parameters a statement declares. It is
// immutable and shared by every execution of a cached statement.
type ParameterMetadata struct {
	params []*querylanguage.Param
	index  map[string]int
}

// NewParameterMetadata returns the metadata of the given parameters, in
// the order of their first occurrence.
func NewParameterMetadata(params []*querylanguage.Param) *ParameterMetadata {
	m := &ParameterMetadata{index: make(map[string]int, len(params))}
	for _, p := range params {
		if _, ok := m.index[p.String()]; ok {
			continue
		}
		m.index[p.String()] = len(m.params)
		m.params = append(m.params, p)
	}
	return m
}

// Len returns the number of distinct parameters.
func (m *ParameterMetadata) Len() int { return len(m.params) }

// Params returns the declared parameters.
func (m *ParameterMetadata) Params() []*querylanguage.Param {
	return append([]*querylanguage.Param(nil), m.params...)
}

// Has reports if the parameter with the label (":name" or "?1") is declared.
func (m *ParameterMetadata) Has(label string) bool {
	_, ok := m.index[label]
	return ok
}

// ParameterXref binds the parameters of one statement execution to values.
// A new one is created for every execution, even when the statement comes
// from the cache, and it must not be shared between goroutines.
type ParameterXref struct {
	meta   *ParameterMetadata
	values map[string]any
}

// NewParameterXref returns an empty binding table for the metadata.
func NewParameterXref(meta *ParameterMetadata) *ParameterXref {
	if meta == nil {
		meta = emptyMetadata
	}
	return &ParameterXref{meta: meta, values: make(map[string]any, meta.Len())}
}

// Metadata returns the parameter metadata the xref was created for.
func (x *ParameterXref) Metadata() *ParameterMetadata { return x.meta }

// Bind binds a named parameter.
func (x *ParameterXref) Bind(name string, v any) error {
	return x.bind(":"+name, v)
}

// BindPositional binds a positional parameter. Positions start at 1.
func (x *ParameterXref) BindPositional(pos int, v any) error {
	return x.bind("?"+strconv.Itoa(pos), v)
}

func (x *ParameterXref) bind(label string, v any) error {
	if !x.meta.Has(label) {
		return fmt.Errorf("%w %s", ErrUndeclaredParameter, label)
	}
	x.values[label] = v
	return nil
}

// Value returns the value bound to the parameter.
func (x *ParameterXref) Value(p *querylanguage.Param) (any, error) {
	v, ok := x.values[p.String()]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnboundParameter, p)
	}
	return v, nil
}

// Validate checks that every declared parameter is bound.
func (x *ParameterXref) Validate() error {
	for _, p := range x.meta.params {
		if _, ok := x.values[p.String()]; !ok {
			return fmt.Errorf("%w %s", ErrUnboundParameter, p)
		}
	}
	return nil
}

// Bindings returns a copy of the bound values keyed by parameter label.
func (x *ParameterXref) Bindings() map[string]any {
	return maps.Clone(x.values)
}
