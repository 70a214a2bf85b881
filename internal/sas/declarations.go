package sas

import (
	"regexp"
	"strings"
)

// KindTeradata marks the schema-indirection libname dialect. Generic
// declarations carry their product name verbatim; TERADATA declarations bind
// an alias and name the real database in a schema= attribute.
const KindTeradata = "TERADATA"

// UnknownSchema is recorded when a TERADATA declaration carries no schema=
// attribute.
const UnknownSchema = "UNKNOWN"

var (
	genericLibnamePattern  = regexp.MustCompile(`(?i)libname\s+(\w+)\s+(\w+)([^;]*);`)
	teradataLibnamePattern = regexp.MustCompile(`(?i)libname\s+(\w+|&\w+)\s+teradata\s+([^;]*);`)
	schemaAttrPattern      = regexp.MustCompile(`(?i)schema\s*=\s*["']?([^"'\s;]+)["']?`)
)

// Database is one declared external database together with every table
// operation attributed to it.
type Database struct {
	Name             string
	Kind             string
	ConnectionDetail string
	Tables           []*OperationTable

	// Aliases holds the declared libname aliases of a TERADATA database.
	// They qualify tables inside SQL text alongside Name.
	Aliases []string
}

// ScanDeclarations runs the generic and the schema-indirection passes over
// source and returns the declared databases, generic ones first.
func ScanDeclarations(source string, vars *VariableTable) []*Database {
	dbs := scanGenericDeclarations(source)
	return append(dbs, scanTeradataDeclarations(source, vars)...)
}

func scanGenericDeclarations(source string) []*Database {
	var dbs []*Database
	for _, m := range genericLibnamePattern.FindAllStringSubmatch(source, -1) {
		name, kind, detail := m[1], m[2], m[3]
		if strings.EqualFold(kind, KindTeradata) {
			continue // owned by the indirection pass
		}
		dbs = append(dbs, &Database{
			Name:             name,
			Kind:             kind,
			ConnectionDetail: strings.TrimSpace(detail),
		})
	}
	return dbs
}

// scanTeradataDeclarations handles declarations of the form
//
//	libname RSK_VAR teradata server=... schema="RISK_VAR_DB";
//
// where the libname is an alias and the database is named by schema=. Both
// the alias and the schema value may be &var references. Each declaration
// seeds one table entry under the alias so the operation scan can anchor on
// it; the seed itself collects no operations.
func scanTeradataDeclarations(source string, vars *VariableTable) []*Database {
	var dbs []*Database
	for _, m := range teradataLibnamePattern.FindAllStringSubmatch(source, -1) {
		alias := vars.Resolve(m[1])
		detail := strings.TrimSpace(m[2])

		schema := UnknownSchema
		if sm := schemaAttrPattern.FindStringSubmatch(detail); sm != nil {
			schema = vars.Resolve(sm[1])
		}

		dbs = append(dbs, &Database{
			Name:             schema,
			Kind:             KindTeradata,
			ConnectionDetail: detail,
			Tables:           []*OperationTable{{Name: alias}},
			Aliases:          []string{alias},
		})
	}
	return dbs
}
