package sas

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanGenericDeclarations(t *testing.T) {
	source := `
libname corp bigquery project="corp-prod" dataset="finance";
libname ora oracle path=ORAPROD user=svc;
`
	dbs := ScanDeclarations(source, NewVariableTable())
	if len(dbs) != 2 {
		t.Fatalf("got %d databases, want 2", len(dbs))
	}

	want := &Database{
		Name:             "corp",
		Kind:             "bigquery",
		ConnectionDetail: `project="corp-prod" dataset="finance"`,
	}
	if diff := cmp.Diff(want, dbs[0]); diff != "" {
		t.Errorf("first database mismatch (-want +got):\n%s", diff)
	}
	if dbs[1].Name != "ora" || dbs[1].Kind != "oracle" {
		t.Errorf("second database = %s/%s, want ora/oracle", dbs[1].Name, dbs[1].Kind)
	}
}

func TestScanDeclarationsSkipsTeradataInGenericPass(t *testing.T) {
	source := `
libname plain postgres server=pg1;
libname RSK_VAR teradata server=tdprod schema="RISK_VAR_DB";
`
	dbs := ScanDeclarations(source, NewVariableTable())
	if len(dbs) != 2 {
		t.Fatalf("got %d databases, want 2", len(dbs))
	}
	// Generic result first, indirection result second; the teradata
	// declaration must not additionally surface as a generic database.
	if dbs[0].Kind != "postgres" {
		t.Errorf("dbs[0].Kind = %q, want postgres", dbs[0].Kind)
	}
	if dbs[1].Kind != KindTeradata {
		t.Errorf("dbs[1].Kind = %q, want %q", dbs[1].Kind, KindTeradata)
	}
	if dbs[1].Name != "RISK_VAR_DB" {
		t.Errorf("dbs[1].Name = %q, want schema value RISK_VAR_DB", dbs[1].Name)
	}
}

func TestScanTeradataDeclaration(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantName   string
		wantAlias  string
		wantSchema string
	}{
		{
			name:      "quoted schema",
			source:    `libname RSK_VAR teradata server=tdprod schema="RISK_VAR_DB" mode=teradata;`,
			wantName:  "RISK_VAR_DB",
			wantAlias: "RSK_VAR",
		},
		{
			name:      "single quoted schema",
			source:    `libname ACCT teradata schema='LEDGER_DB';`,
			wantName:  "LEDGER_DB",
			wantAlias: "ACCT",
		},
		{
			name:      "bare schema",
			source:    `libname ACCT teradata schema=LEDGER_DB user=svc;`,
			wantName:  "LEDGER_DB",
			wantAlias: "ACCT",
		},
		{
			name:      "missing schema",
			source:    `libname SCRATCH teradata server=tdprod;`,
			wantName:  UnknownSchema,
			wantAlias: "SCRATCH",
		},
		{
			name:      "case insensitive keyword",
			source:    `LIBNAME RSK TERADATA Schema = "RISK_DB";`,
			wantName:  "RISK_DB",
			wantAlias: "RSK",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbs := ScanDeclarations(tt.source, NewVariableTable())
			if len(dbs) != 1 {
				t.Fatalf("got %d databases, want 1", len(dbs))
			}
			db := dbs[0]
			if db.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", db.Name, tt.wantName)
			}
			if db.Kind != KindTeradata {
				t.Errorf("Kind = %q, want %q", db.Kind, KindTeradata)
			}
			if len(db.Tables) != 1 || db.Tables[0].Name != tt.wantAlias {
				t.Errorf("Tables = %+v, want one seed entry named %q", db.Tables, tt.wantAlias)
			}
			if len(db.Tables) == 1 && len(db.Tables[0].Operations) != 0 {
				t.Errorf("seed entry carries operations %v, want none", db.Tables[0].Operations)
			}
			if len(db.Aliases) != 1 || db.Aliases[0] != tt.wantAlias {
				t.Errorf("Aliases = %v, want [%q]", db.Aliases, tt.wantAlias)
			}
		})
	}
}

func TestScanTeradataDeclarationResolvesVariables(t *testing.T) {
	source := `
%let risk_alias = RSK_VAR;
%let risk_schema = RISK_VAR_DB;
libname &risk_alias teradata server=tdprod schema="&risk_schema";
`
	vars := CollectVariables(source)
	dbs := ScanDeclarations(source, vars)
	if len(dbs) != 1 {
		t.Fatalf("got %d databases, want 1", len(dbs))
	}
	if dbs[0].Name != "RISK_VAR_DB" {
		t.Errorf("Name = %q, want resolved RISK_VAR_DB", dbs[0].Name)
	}
	if dbs[0].Tables[0].Name != "RSK_VAR" {
		t.Errorf("seed table = %q, want resolved alias RSK_VAR", dbs[0].Tables[0].Name)
	}
}

func TestScanTeradataDeclarationUnresolvedVariable(t *testing.T) {
	source := `libname &undeclared teradata schema="RISK_DB";`
	dbs := ScanDeclarations(source, NewVariableTable())
	if len(dbs) != 1 {
		t.Fatalf("got %d databases, want 1", len(dbs))
	}
	// An unresolvable reference survives verbatim rather than failing.
	if dbs[0].Tables[0].Name != "&undeclared" {
		t.Errorf("seed table = %q, want literal &undeclared", dbs[0].Tables[0].Name)
	}
}
