package convert

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sasbridge/internal/sas"
)

func TestExtractImportLines(t *testing.T) {
	code := "import pandas as pd\n" +
		"from sqlalchemy import create_engine, text\n" +
		"import pandas as pd\n" + // duplicate
		"    import os\n" + // indented still counts
		"result = import_data()\n" +
		"from x import *\n" + // star imports stay in the body
		"import json # with comment\n" + // trailing comment disqualifies
		"df = pd.DataFrame()\n"

	want := []string{
		"import pandas as pd",
		"from sqlalchemy import create_engine, text",
		"import os",
	}
	if diff := cmp.Diff(want, extractImportLines(code)); diff != "" {
		t.Errorf("extractImportLines mismatch (-want +got):\n%s", diff)
	}
}

func TestStripImportLines(t *testing.T) {
	code := "import pandas as pd\ndf = pd.DataFrame()\nfrom os import path\nprint(df)"
	want := "df = pd.DataFrame()\nprint(df)"
	if got := stripImportLines(code); got != want {
		t.Errorf("stripImportLines = %q, want %q", got, want)
	}
}

func TestMergeProgram(t *testing.T) {
	functions := []ConvertedFunction{{
		Name: "f",
		Code: "import numpy as np\n\ndef f():\n    return np.nan",
	}}
	blocks := []string{"import numpy as np\nimport os\n\nprint(f())"}

	want := "import numpy as np\nimport os\n\n" +
		"# ===== Function Definitions =====\ndef f():\n    return np.nan\n\n" +
		"# ===== Main Code =====\nprint(f())"
	if got := mergeProgram(functions, blocks); got != want {
		t.Errorf("mergeProgram = %q, want %q", got, want)
	}
}

func TestMergeProgramSections(t *testing.T) {
	t.Run("no functions", func(t *testing.T) {
		got := mergeProgram(nil, []string{"x = 1"})
		want := "# ===== Main Code =====\nx = 1"
		if got != want {
			t.Errorf("mergeProgram = %q, want %q", got, want)
		}
	})

	t.Run("import-only piece is dropped", func(t *testing.T) {
		got := mergeProgram(nil, []string{"import os", "x = 1"})
		want := "import os\n\n# ===== Main Code =====\nx = 1"
		if got != want {
			t.Errorf("mergeProgram = %q, want %q", got, want)
		}
	})

	t.Run("nothing to merge", func(t *testing.T) {
		if got := mergeProgram(nil, nil); got != "" {
			t.Errorf("mergeProgram = %q, want empty", got)
		}
	})
}

func TestDependencyComments(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := DependencyComments(sas.DependencyReport{})
		if got != "# No external dependencies detected" {
			t.Errorf("DependencyComments = %q", got)
		}
	})

	t.Run("lists dependencies", func(t *testing.T) {
		report := sas.DependencyReport{ExternalDependencies: []string{"setup.sas", "corp"}}
		want := "# ===== External Dependencies =====\n" +
			"# The following SAS dependencies need manual handling:\n" +
			"# TODO: handle external dependency - setup.sas\n" +
			"# TODO: handle external dependency - corp\n" +
			"# ================================="
		if got := DependencyComments(report); got != want {
			t.Errorf("DependencyComments = %q, want %q", got, want)
		}
	})
}

func TestBasePackage(t *testing.T) {
	tests := []struct {
		stmt string
		want string
	}{
		{"import pandas as pd", "pandas"},
		{"import matplotlib.pyplot as plt", "matplotlib"},
		{"from sklearn.linear_model import LinearRegression", "sklearn"},
		{"from os import path", "os"},
		{"import os, sys", "os"},
	}
	for _, tt := range tests {
		if got := basePackage(tt.stmt); got != tt.want {
			t.Errorf("basePackage(%q) = %q, want %q", tt.stmt, got, tt.want)
		}
	}
}

func TestRequirements(t *testing.T) {
	code := "import pandas as pd\n" +
		"import os\n" +
		"import requests\n" +
		"from sklearn.linear_model import LinearRegression\n" +
		"import psycopg2\n" +
		"df = pd.DataFrame()\n"

	want := []string{
		"pandas>=1.3.0",
		"psycopg2-binary>=2.9.0",
		"requests",
		"scikit-learn>=1.0.0",
	}
	if diff := cmp.Diff(want, Requirements(code)); diff != "" {
		t.Errorf("Requirements mismatch (-want +got):\n%s", diff)
	}
}

func TestRequirementsEmpty(t *testing.T) {
	if got := Requirements("x = 1\n"); len(got) != 0 {
		t.Errorf("Requirements = %v, want none", got)
	}
}
