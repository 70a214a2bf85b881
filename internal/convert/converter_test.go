package convert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sasbridge/internal/sas"
)

type completionCall struct {
	system string
	user   string
}

// fakeClient records every completion call and answers via fn.
type fakeClient struct {
	fn    func(system, user string) (string, error)
	calls []completionCall
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls = append(f.calls, completionCall{system: systemPrompt, user: userPrompt})
	return f.fn(systemPrompt, userPrompt)
}

func TestConvertMacroRebuildsDefinition(t *testing.T) {
	client := &fakeClient{fn: func(system, user string) (string, error) {
		return "def tag_rows(ds):\n    pass", nil
	}}
	c := New(client, 1000)

	m := sas.Macro{Name: "tag_rows", Body: "(ds);\ndata &ds;\nrun;\n"}
	got, err := c.ConvertMacro(context.Background(), m)
	if err != nil {
		t.Fatalf("ConvertMacro: %v", err)
	}
	if got != "def tag_rows(ds):\n    pass" {
		t.Errorf("converted code = %q", got)
	}

	if len(client.calls) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(client.calls))
	}
	call := client.calls[0]
	if call.system != macroSystemPrompt {
		t.Error("macro conversion did not use the macro system prompt")
	}
	if !strings.Contains(call.user, "%macro tag_rows(ds);\ndata &ds;\nrun;\n%mend tag_rows;") {
		t.Errorf("prompt does not rebuild the macro definition:\n%s", call.user)
	}
	if !strings.Contains(call.user, "```sas\n") {
		t.Errorf("prompt does not wrap the macro in a sas fence:\n%s", call.user)
	}
}

func TestConvertBlockPromptSelection(t *testing.T) {
	tests := []struct {
		name       string
		block      string
		wantSystem string
	}{
		{"data step", "data work.a;\nset work.b;\nrun;", mainSystemPrompt},
		{"proc sql", "proc sql;\nselect * from work.a;\nquit;", sqlSystemPrompt},
		{"uppercase proc sql", "PROC SQL;\nSELECT 1;\nQUIT;", sqlSystemPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{fn: func(system, user string) (string, error) {
				return "converted", nil
			}}
			c := New(client, 1000)
			if _, err := c.ConvertBlock(context.Background(), tt.block); err != nil {
				t.Fatalf("ConvertBlock: %v", err)
			}
			if client.calls[0].system != tt.wantSystem {
				t.Errorf("wrong system prompt for %q", tt.block)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"python fence", "```python\nx = 1\n```", "x = 1"},
		{"bare fence", "```\nx = 1\n```", "x = 1"},
		{"no fence", "  x = 1  ", "x = 1"},
		{"unterminated fence", "```python\nx = 1", "```python\nx = 1"},
		{"fence with surrounding space", "\n```python\nx = 1\n```\n", "x = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConvertAssemblesProgram(t *testing.T) {
	source := "%let risk_schema=RISK;\n" +
		"libname rsk teradata server=tdprod schema=\"&risk_schema\";\n" +
		"%include 'shared/setup.sas';\n" +
		"\n" +
		"%macro tag_rows(ds);\n" +
		"data &ds;\n" +
		"set &ds;\n" +
		"run;\n" +
		"%mend tag_rows;\n" +
		"\n" +
		"proc sql;\n" +
		"insert into rsk.audit_log select * from work.base;\n" +
		"quit;\n"

	client := &fakeClient{fn: func(system, user string) (string, error) {
		if system == macroSystemPrompt {
			return "```python\nimport pandas as pd\n\ndef tag_rows(ds):\n    ds['flag'] = 1\n    return ds\n```", nil
		}
		return "import pandas as pd\nimport sqlalchemy\n\nbase = pd.DataFrame()", nil
	}}
	c := New(client, 1000)

	result, err := c.Convert(context.Background(), source, "risk.sas")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	wantFunctions := []ConvertedFunction{{
		Name: "tag_rows",
		Code: "import pandas as pd\n\ndef tag_rows(ds):\n    ds['flag'] = 1\n    return ds",
	}}
	if diff := cmp.Diff(wantFunctions, result.Functions); diff != "" {
		t.Errorf("Functions mismatch (-want +got):\n%s", diff)
	}
	if len(result.MainBlocks) != 1 {
		t.Fatalf("expected 1 main block, got %d", len(result.MainBlocks))
	}

	wantRequirements := []string{"pandas>=1.3.0", "sqlalchemy>=1.4.0", "teradatasql>=17.0.0"}
	if diff := cmp.Diff(wantRequirements, result.Requirements); diff != "" {
		t.Errorf("Requirements mismatch (-want +got):\n%s", diff)
	}

	wantDatabases := []sas.DatabaseUsage{{
		DatabaseName:     "RISK",
		DatabaseType:     "TERADATA",
		ConnectionDetail: `server=tdprod schema="&risk_schema"`,
		OperationTables: []sas.TableUsage{{
			TableName:  "audit_log",
			Operations: []sas.OperationKind{sas.OpInsert},
		}},
	}}
	if diff := cmp.Diff(wantDatabases, result.DataSources.Databases); diff != "" {
		t.Errorf("DataSources mismatch (-want +got):\n%s", diff)
	}

	code := result.PythonCode
	if !strings.HasPrefix(code, "# ===== External Dependencies =====\n") {
		t.Errorf("program does not open with the dependency banner:\n%s", code)
	}
	for _, want := range []string{
		"# TODO: handle external dependency - shared/setup.sas",
		"# TODO: handle external dependency - rsk",
		"# Teradata connection (schema RISK)",
		"import teradatasql",
		"# ===== Function Definitions =====\ndef tag_rows(ds):",
		"# ===== Main Code =====\nbase = pd.DataFrame()",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("program missing %q:\n%s", want, code)
		}
	}
	// Imports are hoisted: nothing below the function banner should import.
	tail := code[strings.Index(code, functionBanner):]
	if strings.Contains(tail, "import ") {
		t.Errorf("import statements were not hoisted above the sections:\n%s", tail)
	}
	if !strings.HasSuffix(code, "\n") {
		t.Error("program does not end with a newline")
	}
}

func TestConvertMinimalSource(t *testing.T) {
	client := &fakeClient{fn: func(system, user string) (string, error) {
		return "x = 1", nil
	}}
	c := New(client, 1000)

	result, err := c.Convert(context.Background(), "data a;\nset b;\nrun;", "tiny.sas")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	want := "# No external dependencies detected\n\n" +
		"# No database connections detected\n\n" +
		"# ===== Main Code =====\nx = 1\n"
	if result.PythonCode != want {
		t.Errorf("PythonCode = %q, want %q", result.PythonCode, want)
	}
	if len(result.Requirements) != 0 {
		t.Errorf("expected no requirements, got %v", result.Requirements)
	}
}

func TestConvertFailureNamesPiece(t *testing.T) {
	boom := errors.New("model unavailable")

	t.Run("macro", func(t *testing.T) {
		client := &fakeClient{fn: func(system, user string) (string, error) {
			return "", boom
		}}
		c := New(client, 1000)
		source := "%macro broken;\nrun;\n%mend broken;\n"
		_, err := c.Convert(context.Background(), source, "x.sas")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "macro broken") {
			t.Errorf("error does not name the macro: %v", err)
		}
		if !errors.Is(err, boom) {
			t.Error("error does not wrap the client failure")
		}
	})

	t.Run("block", func(t *testing.T) {
		client := &fakeClient{fn: func(system, user string) (string, error) {
			return "", boom
		}}
		c := New(client, 1000)
		_, err := c.Convert(context.Background(), "data a;\nrun;", "x.sas")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "block 1") {
			t.Errorf("error does not name the block: %v", err)
		}
	})
}
