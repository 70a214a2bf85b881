package sas

import "testing"

func TestCollectVariables(t *testing.T) {
	source := `
%let risk_lib = RISK_DB;
%let env=prod;
%let spaced =   padded value  ;
`
	vars := CollectVariables(source)
	if vars.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", vars.Len())
	}

	tests := []struct {
		ref  string
		want string
	}{
		{"&risk_lib", "RISK_DB"},
		{"&env", "prod"},
		{"&spaced", "padded value"},
	}
	for _, tt := range tests {
		if got := vars.Resolve(tt.ref); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestCollectVariablesLastWins(t *testing.T) {
	source := "%let target = first;\n%let target = second;"
	vars := CollectVariables(source)
	if got := vars.Resolve("&target"); got != "second" {
		t.Errorf("Resolve(&target) = %q, want %q", got, "second")
	}
	if vars.Len() != 1 {
		t.Errorf("Len() = %d, want 1", vars.Len())
	}
}

func TestResolveCaseSensitive(t *testing.T) {
	vars := NewVariableTable()
	vars.Define("Schema", "RISK_DB")
	if got := vars.Resolve("&schema"); got != "&schema" {
		t.Errorf("Resolve(&schema) = %q, want the reference back unchanged", got)
	}
	if got := vars.Resolve("&Schema"); got != "RISK_DB" {
		t.Errorf("Resolve(&Schema) = %q, want %q", got, "RISK_DB")
	}
}

func TestResolvePassthrough(t *testing.T) {
	vars := NewVariableTable()
	vars.Define("lib", "CORE_DB")

	// No sigil means literal text, even if a binding with that name exists.
	if got := vars.Resolve("lib"); got != "lib" {
		t.Errorf("Resolve(lib) = %q, want %q", got, "lib")
	}
	if got := vars.Resolve("&missing"); got != "&missing" {
		t.Errorf("Resolve(&missing) = %q, want %q", got, "&missing")
	}
}

func TestResolveDoesNotRecurse(t *testing.T) {
	vars := NewVariableTable()
	vars.Define("outer", "&inner")
	vars.Define("inner", "deep")
	if got := vars.Resolve("&outer"); got != "&inner" {
		t.Errorf("Resolve(&outer) = %q, want single-level %q", got, "&inner")
	}
}
