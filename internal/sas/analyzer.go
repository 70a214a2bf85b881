// Package sas statically analyzes SAS source. It resolves %let variable
// bindings, discovers libname database declarations in both the generic and
// the TERADATA schema-indirection dialects, attributes table-level SQL
// operations inside proc sql blocks to the databases that own them, splits
// source into macro definitions plus token-budgeted main-body chunks, and
// computes complexity and dependency reports.
//
// Everything here is a pure transform over an input string: no I/O, no
// shared state, nothing to cancel. Absence of a match is an empty result,
// not an error. The one exception is EnrichDependencies, which calls out to
// a completion model and takes a context.
package sas

// DatabaseUsage is the serialized form of one analyzed database.
type DatabaseUsage struct {
	DatabaseName     string       `json:"databaseName"`
	DatabaseType     string       `json:"databaseType"`
	ConnectionDetail string       `json:"connectionDetail"`
	OperationTables  []TableUsage `json:"operationTables"`
}

// TableUsage is the serialized form of one table's attributed operations.
type TableUsage struct {
	TableName  string          `json:"tableName"`
	Operations []OperationKind `json:"operations"`
}

// DataSourceReport wraps database usage for callers; flat files and other
// source kinds would slot in beside Databases.
type DataSourceReport struct {
	Databases []DatabaseUsage `json:"databases"`
}

// AnalyzeDatabaseUsage runs the full declaration and operation scan over
// source and returns every database that ended up with attributed
// operations. Tables with no operations are dropped first, then databases
// left with no tables; a declared but never-queried database does not appear.
func AnalyzeDatabaseUsage(source string) []DatabaseUsage {
	vars := CollectVariables(source)
	dbs := ScanDeclarations(source, vars)
	AttributeOperations(source, dbs)

	out := []DatabaseUsage{}
	for _, db := range dbs {
		tables := []TableUsage{}
		for _, t := range db.Tables {
			if len(t.Operations) == 0 {
				continue
			}
			tables = append(tables, TableUsage{TableName: t.Name, Operations: t.Operations})
		}
		if len(tables) == 0 {
			continue
		}
		out = append(out, DatabaseUsage{
			DatabaseName:     db.Name,
			DatabaseType:     db.Kind,
			ConnectionDetail: db.ConnectionDetail,
			OperationTables:  tables,
		})
	}
	return out
}

// AnalyzeDataSources wraps AnalyzeDatabaseUsage in the report envelope.
func AnalyzeDataSources(source string) DataSourceReport {
	return DataSourceReport{Databases: AnalyzeDatabaseUsage(source)}
}
