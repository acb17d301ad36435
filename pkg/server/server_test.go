package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/aggregator"
	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/method"
	"github.com/David-Botos/data-anonymizer/pkg/model"
)

const peopleCSV = "Name,Country\nAlice,US\nBob,UK\nCarol,US\n"

type upload struct {
	name    string
	content string
}

func newTestServer(t *testing.T, maxContent int64) (*Server, string) {
	t.Helper()
	seed := uint64(7)
	anon, err := anonymizer.NewAnonymizer(anonymizer.Options{
		Method:          method.DefaultOptions(),
		ConsistencyMode: aggregator.ModeSet,
		Seed:            &seed,
	}, zap.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	srv, err := New(Options{
		OutputDir:         dir,
		MaxContentLength:  maxContent,
		AllowedExtensions: []string{"xlsx", "csv"},
		ConsistencyMode:   aggregator.ModeSet,
	}, anon, zap.NewNop())
	require.NoError(t, err)
	return srv, dir
}

func multipartRequest(t *testing.T, path string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type anonymizeEnvelope struct {
	Success bool                     `json:"success"`
	Data    AnonymizeResponse        `json:"data"`
	Error   string                   `json:"error"`
	Issues  []anonymizer.ColumnIssue `json:"issues"`
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 1<<20)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestInspect(t *testing.T) {
	srv, _ := newTestServer(t, 1<<20)
	req := multipartRequest(t, "/api/inspect", []upload{{"people.csv", peopleCSV}}, nil)

	rec := serve(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool                  `json:"success"`
		Data    anonymizer.Inspection `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data.Datasets, 1)
	assert.Equal(t, "people.csv", resp.Data.Datasets[0].Name)
	assert.Equal(t, []string{"Name", "Country"}, resp.Data.Datasets[0].Sheets[0].Columns)
	assert.Equal(t, 3, resp.Data.Datasets[0].Sheets[0].Rows)
	assert.Empty(t, resp.Data.Issues)
}

func TestAnonymizeAndDownload(t *testing.T) {
	srv, dir := newTestServer(t, 1<<20)
	req := multipartRequest(t, "/api/anonymize", []upload{{"people.csv", peopleCSV}}, map[string]string{
		"methods": `{"Name":{"method":"sha256"},"Country":{"method":"swap"}}`,
	})

	rec := serve(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp anonymizeEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.True(t, strings.HasPrefix(resp.Data.Output, "Anonymized_"), resp.Data.Output)
	assert.True(t, strings.HasSuffix(resp.Data.Output, "_people.csv"), resp.Data.Output)
	assert.True(t, strings.HasPrefix(resp.Data.Log, "log_"), resp.Data.Log)
	assert.FileExists(t, filepath.Join(dir, resp.Data.Output))
	assert.FileExists(t, filepath.Join(dir, resp.Data.Log))

	download := serve(srv, httptest.NewRequest(http.MethodGet, "/api/download/"+resp.Data.Output, nil))
	require.Equal(t, http.StatusOK, download.Code)
	body := download.Body.String()
	assert.True(t, strings.HasPrefix(body, "Name,Country\n"), body)
	assert.NotContains(t, body, "Alice")
	assert.Contains(t, download.Header().Get("Content-Disposition"), resp.Data.Output)

	logResp := serve(srv, httptest.NewRequest(http.MethodGet, "/api/logs/"+resp.Data.Log, nil))
	require.Equal(t, http.StatusOK, logResp.Code)
	assert.Contains(t, logResp.Body.String(), "Name: SHA-256 pseudonymization")
	assert.Contains(t, logResp.Body.String(), "Country: Value swap")
}

func TestAnonymizeFormFields(t *testing.T) {
	srv, dir := newTestServer(t, 1<<20)
	req := multipartRequest(t, "/api/anonymize", []upload{{"people.csv", peopleCSV}}, map[string]string{
		"method_Name": "md5",
	})

	rec := serve(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp anonymizeEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	data, err := os.ReadFile(filepath.Join(dir, resp.Data.Output))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Alice")
	assert.Contains(t, string(data), ",US\n")
}

func TestSelectionFromFormKeepsParams(t *testing.T) {
	form := &multipart.Form{Value: map[string][]string{
		"methods":      {`{"Age":{"method":"generalize","params":{"range_size":5}},"City":{"method":"swap"}}`},
		"method_Age":   {"range-generalize"},
		"method_Email": {"hash-md5"},
	}}

	selection, err := selectionFromForm(form)
	require.NoError(t, err)

	assert.Equal(t, model.MethodSelection{
		Method: model.MethodRangeGeneralize,
		Params: map[string]interface{}{model.ParamRangeSize: float64(5)},
	}, selection["Age"])
	assert.Equal(t, model.MethodSelection{Method: model.MethodSwap}, selection["City"])
	assert.Equal(t, model.MethodSelection{Method: model.MethodHashMD5}, selection["Email"])
}

func TestAnonymizeValidationFailure(t *testing.T) {
	srv, dir := newTestServer(t, 1<<20)
	req := multipartRequest(t, "/api/anonymize", []upload{
		{"a.csv", "Country\nUS\nUK\n"},
		{"b.csv", "Country\nUS\nFR\n"},
	}, map[string]string{"methods": `{"Country":{"method":"swap"}}`})

	rec := serve(srv, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp anonymizeEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, "Country", resp.Issues[0].Column)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnonymizeBadMethodsJSON(t *testing.T) {
	srv, _ := newTestServer(t, 1<<20)
	req := multipartRequest(t, "/api/anonymize", []upload{{"people.csv", peopleCSV}}, map[string]string{
		"methods": `{"Name":`,
	})
	rec := serve(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadErrors(t *testing.T) {
	srv, _ := newTestServer(t, 1<<20)

	unsupported := serve(srv, multipartRequest(t, "/api/inspect", []upload{{"notes.txt", "hello"}}, nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, unsupported.Code)

	missing := serve(srv, multipartRequest(t, "/api/inspect", nil, map[string]string{"x": "y"}))
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	small, _ := newTestServer(t, 256)
	large := serve(small, multipartRequest(t, "/api/inspect", []upload{{"big.csv", strings.Repeat("a,b\n", 200)}}, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, large.Code)
}

func TestArtifactNames(t *testing.T) {
	srv, dir := newTestServer(t, 1<<20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log_1_people.csv.txt"), []byte("log"), 0o644))

	tests := []struct {
		path string
		code int
	}{
		{"/api/download/.hidden", http.StatusBadRequest},
		{"/api/download/log_1_people.csv.txt", http.StatusNotFound},
		{"/api/download/Anonymized_missing.csv", http.StatusNotFound},
		{"/api/logs/log_1_people.csv.txt", http.StatusOK},
	}
	for _, tt := range tests {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.code, rec.Code, tt.path)
	}
}

func TestNewRejectsNil(t *testing.T) {
	_, err := New(Options{OutputDir: t.TempDir(), MaxContentLength: 1}, nil, zap.NewNop())
	assert.Error(t, err)
}
