package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontdude/goconv/internal/domain"
)

func TestCloudConvert_SubmitJob(t *testing.T) {
	var got createJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/jobs", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"job-123","status":"waiting"}}`))
	}))
	defer srv.Close()

	c := NewCloudConvert(srv.URL+"/v2/", "secret", time.Second)
	id, err := c.SubmitJob(context.Background(), domain.SubmitRequest{
		Filename:     "report.docx",
		Content:      []byte("hello"),
		TargetFormat: "PDF",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.JobID("job-123"), id)

	require.Len(t, got.Tasks, 3)
	assert.Equal(t, "import/base64", got.Tasks[taskImport].Operation)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), got.Tasks[taskImport].File)
	assert.Equal(t, "report.docx", got.Tasks[taskImport].Filename)
	assert.Equal(t, "pdf", got.Tasks[taskConvert].OutputFormat)
	assert.Equal(t, taskImport, got.Tasks[taskConvert].Input)
	assert.Equal(t, domain.OperationExportURL, got.Tasks[taskExport].Operation)
	assert.Equal(t, taskConvert, got.Tasks[taskExport].Input)
}

func TestCloudConvert_SubmitJobErrors(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"error status": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"message":"invalid"}`, http.StatusUnprocessableEntity)
		},
		"bad body": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
		"missing id": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{}}`))
		},
	}

	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			c := NewCloudConvert(srv.URL, "secret", time.Second)
			_, err := c.SubmitJob(context.Background(), domain.SubmitRequest{Filename: "a.png", TargetFormat: "jpg"})
			assert.ErrorIs(t, err, domain.ErrProvider)
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("converted-bytes"))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second, 32)

	data, err := f.FetchArtifact(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, []byte("converted-bytes"), data)

	_, err = f.FetchArtifact(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, domain.ErrArtifactFetch)

	_, err = f.FetchArtifact(context.Background(), srv.URL+"/big")
	assert.ErrorIs(t, err, domain.ErrArtifactFetch)

	_, err = f.FetchArtifact(context.Background(), "://bad-url")
	assert.ErrorIs(t, err, domain.ErrArtifactFetch)
}
