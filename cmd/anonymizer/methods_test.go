package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/model"
)

func TestParseMethods(t *testing.T) {
	doc := `
columns:
  Name: sha256
  Country:
    method: swap
  Age:
    method: range-generalize
    params:
      range_size: 5
`
	selection, err := parseMethods(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, model.MethodID("sha256"), selection["Name"].Method)
	assert.Equal(t, model.MethodSwap, selection["Country"].Method)
	assert.Equal(t, model.MethodRangeGeneralize, selection["Age"].Method)
	assert.Equal(t, 5, selection["Age"].Params[model.ParamRangeSize])
}

func TestParseMethodsRejectsUnknownKeys(t *testing.T) {
	_, err := parseMethods(strings.NewReader("colums:\n  Name: sha256\n"))
	assert.Error(t, err)
}

func TestParseMethodsEmpty(t *testing.T) {
	selection, err := parseMethods(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, selection)
}

func TestBuildSelectionOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "methods.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns:\n  Name: sha256\n  Country: swap\n"), 0o600))

	selection, err := buildSelection(path, map[string]string{"Name": " md5 "})
	require.NoError(t, err)
	assert.Equal(t, model.MethodID("md5"), selection["Name"].Method)
	assert.Equal(t, model.MethodID("swap"), selection["Country"].Method)

	_, err = buildSelection(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	_, err = buildSelection("", map[string]string{" ": "swap"})
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(&anonymizer.ValidationError{Issues: []anonymizer.ColumnIssue{{Column: "Country"}}}))
	assert.Equal(t, 1, exitCode(assert.AnError))
}

func TestPrintInspection(t *testing.T) {
	datasets := []*model.Dataset{
		{Name: "a.csv", Format: model.FormatCSV, Sheets: []*model.Sheet{{
			Name:    model.DefaultSheetName,
			Columns: []*model.Column{{Name: "Country", Values: []interface{}{"US", "UK"}}},
		}}},
		{Name: "b.csv", Format: model.FormatCSV, Sheets: []*model.Sheet{{
			Name:    model.DefaultSheetName,
			Columns: []*model.Column{{Name: "Country", Values: []interface{}{"US", "FR"}}},
		}}},
	}

	var buf bytes.Buffer
	require.NoError(t, printInspection(&buf, anonymizer.Inspect(datasets, "")))

	out := buf.String()
	assert.Contains(t, out, "a.csv")
	assert.Contains(t, out, "Shared columns: Country")
	assert.Contains(t, out, "Consistency issues:")
	assert.Contains(t, out, "Country: inconsistent values")
}
