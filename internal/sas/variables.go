package sas

import (
	"regexp"
	"strings"
)

// letPattern matches %let assignments: %let name = value;
var letPattern = regexp.MustCompile(`(?i)%let\s+(\w+)\s*=\s*([^;]+);`)

// VariableTable holds name -> literal substitution text bindings collected
// from %let directives. Values are raw text, never re-resolved.
type VariableTable struct {
	vars map[string]string
}

// NewVariableTable returns an empty table.
func NewVariableTable() *VariableTable {
	return &VariableTable{vars: make(map[string]string)}
}

// CollectVariables scans source top to bottom and records every %let binding.
func CollectVariables(source string) *VariableTable {
	t := NewVariableTable()
	for _, m := range letPattern.FindAllStringSubmatch(source, -1) {
		t.Define(m[1], strings.TrimSpace(m[2]))
	}
	return t
}

// Define binds name to the raw substitution text. Redefinition is not an
// error; the last definition wins.
func (t *VariableTable) Define(name, value string) {
	t.vars[name] = value
}

// Resolve returns the bound value for a &name reference. Text without the &
// sigil, and references to unknown names, come back unchanged.
func (t *VariableTable) Resolve(ref string) string {
	if !strings.HasPrefix(ref, "&") {
		return ref
	}
	if value, ok := t.vars[ref[1:]]; ok {
		return value
	}
	return ref
}

// Len reports the number of distinct bindings.
func (t *VariableTable) Len() int {
	return len(t.vars)
}
