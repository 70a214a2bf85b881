package sas

import (
	"fmt"
	"regexp"
)

// OperationKind classifies one table-level SQL action. JOIN sites count as
// SELECT rather than a kind of their own.
type OperationKind string

const (
	OpSelect     OperationKind = "SELECT"
	OpInsert     OperationKind = "INSERT"
	OpUpdate     OperationKind = "UPDATE"
	OpDelete     OperationKind = "DELETE"
	OpCreateView OperationKind = "CREATE VIEW"
	OpSelectInto OperationKind = "SELECT INTO"
)

// OperationTable records the operation kinds attributed to a single table, in
// first-discovery order and without duplicates.
type OperationTable struct {
	Name       string
	Operations []OperationKind
}

// Add appends kind unless the table already carries it.
func (t *OperationTable) Add(kind OperationKind) {
	for _, existing := range t.Operations {
		if existing == kind {
			return
		}
	}
	t.Operations = append(t.Operations, kind)
}

// Table returns the named entry, or nil.
func (d *Database) Table(name string) *OperationTable {
	for _, t := range d.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Record attributes kind to the named table, creating the entry on first
// sight and extending it afterwards.
func (d *Database) Record(table string, kind OperationKind) {
	entry := d.Table(table)
	if entry == nil {
		entry = &OperationTable{Name: table}
		d.Tables = append(d.Tables, entry)
	}
	entry.Add(kind)
}

// anchors lists the qualifiers that can own a table for this database inside
// SQL text: declared aliases first, then the database name itself.
func (d *Database) anchors() []string {
	out := make([]string, 0, len(d.Aliases)+1)
	out = append(out, d.Aliases...)
	return append(out, d.Name)
}

// sqlRegionPattern isolates proc sql; ... quit; spans. An opener without a
// matching quit never matches, so malformed blocks degrade to no regions.
var sqlRegionPattern = regexp.MustCompile(`(?is)proc\s+sql;(.*?)quit;`)

// ExtractSQLRegions returns the body of every SQL region in source order.
func ExtractSQLRegions(source string) []string {
	matches := sqlRegionPattern.FindAllStringSubmatch(source, -1)
	regions := make([]string, 0, len(matches))
	for _, m := range matches {
		regions = append(regions, m[1])
	}
	return regions
}

// operationPatterns pairs each operation kind with its anchored search
// template. The %s slot takes the quoted anchor. The two SELECT-clause kinds
// carry the s flag so a statement can span lines. Order matters: it fixes
// first-discovery order for tables named by more than one statement.
var operationPatterns = []struct {
	kind     OperationKind
	template string
}{
	{OpSelect, `(?is)select\s+.*?\s+from\s+(?:%s\.)(\w+)`},
	{OpSelect, `(?i)join\s+(?:%s\.)(\w+)`},
	{OpUpdate, `(?i)update\s+(?:%s\.)(\w+)`},
	{OpInsert, `(?i)insert\s+(?:into\s+)?(?:%s\.)(\w+)`},
	{OpDelete, `(?i)delete\s+from\s+(?:%s\.)(\w+)`},
	{OpCreateView, `(?i)create\s+view\s+(?:%s\.)(\w+)`},
	{OpSelectInto, `(?is)select\s+.*?\s+into\s+(?:%s\.)(\w+)`},
}

type anchoredPattern struct {
	kind OperationKind
	re   *regexp.Regexp
}

func compileAnchorPatterns(d *Database) []anchoredPattern {
	var out []anchoredPattern
	for _, anchor := range d.anchors() {
		quoted := regexp.QuoteMeta(anchor)
		for _, p := range operationPatterns {
			out = append(out, anchoredPattern{
				kind: p.kind,
				re:   regexp.MustCompile(fmt.Sprintf(p.template, quoted)),
			})
		}
	}
	return out
}

// AttributeOperations scans every SQL region in source and attaches the table
// operations it finds to their owning databases. A TERADATA alias qualifies
// tables in addition to the database name, and each hit lands on the table
// the SQL names; nothing is attributed to the alias's own seed entry.
func AttributeOperations(source string, dbs []*Database) {
	regions := ExtractSQLRegions(source)
	if len(regions) == 0 || len(dbs) == 0 {
		return
	}
	compiled := make([][]anchoredPattern, len(dbs))
	for i, db := range dbs {
		compiled[i] = compileAnchorPatterns(db)
	}
	for _, region := range regions {
		for i, db := range dbs {
			for _, p := range compiled[i] {
				for _, m := range p.re.FindAllStringSubmatch(region, -1) {
					db.Record(m[1], p.kind)
				}
			}
		}
	}
}
