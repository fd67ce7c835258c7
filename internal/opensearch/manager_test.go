package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method  string
	path    string
	rawPath string
	auth    string
	hash    string
	body    string
}

type fakeCollection struct {
	mu       sync.Mutex
	requests []recorded
	status   map[string]int
}

func (f *fakeCollection) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method:  r.Method,
		path:    r.URL.Path,
		rawPath: r.URL.EscapedPath(),
		auth:    r.Header.Get("Authorization"),
		hash:    r.Header.Get("x-amz-content-sha256"),
		body:    string(body),
	})
	status := f.status[r.Method]
	f.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"index_not_found_exception"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"acknowledged":true,"index":"` + strings.TrimPrefix(r.URL.Path, "/") + `"}`))
}

func newTestManager(t *testing.T, f *fakeCollection) *Manager {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	m, err := New(Options{
		Endpoint:    srv.URL,
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	creds := credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")

	_, err := New(Options{Region: "us-east-1", Credentials: creds})
	require.ErrorIs(t, err, ErrNoEndpoint)

	m, err := New(Options{Endpoint: "abc.us-east-1.aoss.amazonaws.com", Region: "us-east-1", Credentials: creds})
	require.NoError(t, err)
	require.Equal(t, "https", m.base.Scheme)
	require.Equal(t, "abc.us-east-1.aoss.amazonaws.com", m.base.Host)

	_, err = New(Options{Endpoint: "https://x", Credentials: creds})
	require.Error(t, err)
}

func TestCreate(t *testing.T) {
	f := &fakeCollection{}
	m := newTestManager(t, f)

	out, err := m.Create(context.Background(), IndexSpec{Name: "kb", Dimension: 4})
	require.NoError(t, err)
	require.Equal(t, true, out["acknowledged"])

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	require.Equal(t, http.MethodPut, req.method)
	require.Equal(t, "/kb", req.path)
	require.True(t, strings.HasPrefix(req.auth, "AWS4-HMAC-SHA256 Credential=AKID/"))
	require.Contains(t, req.auth, "/us-east-1/aoss/aws4_request")
	require.Len(t, req.hash, 64)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.body), &body))
	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	vec := props[DefaultVectorField].(map[string]any)
	require.Equal(t, "knn_vector", vec["type"])
	require.InDelta(t, 4, vec["dimension"], 0)
}

func TestCreateUnknownEngine(t *testing.T) {
	f := &fakeCollection{}
	m := newTestManager(t, f)

	_, err := m.Create(context.Background(), IndexSpec{Engine: "annoy"})
	require.Error(t, err)
	require.Empty(t, f.requests)
}

func TestGetAndDelete(t *testing.T) {
	f := &fakeCollection{}
	m := newTestManager(t, f)

	_, err := m.Get(context.Background(), "")
	require.NoError(t, err)
	_, err = m.Delete(context.Background(), "kb")
	require.NoError(t, err)

	require.Equal(t, http.MethodGet, f.requests[0].method)
	require.Equal(t, "/"+DefaultIndexName, f.requests[0].path)
	require.Equal(t, http.MethodDelete, f.requests[1].method)
	require.Equal(t, "/kb", f.requests[1].path)
}

func TestIndexNamePath(t *testing.T) {
	f := &fakeCollection{}
	m := newTestManager(t, f)

	_, err := m.Get(context.Background(), "kb%1")
	require.NoError(t, err)
	require.Equal(t, "/kb%1", f.requests[0].path)
	require.Equal(t, "/kb%251", f.requests[0].rawPath)

	for _, name := range []string{"..", "a/b", "x?y"} {
		_, err := m.Get(context.Background(), name)
		require.Error(t, err, name)
		_, err = m.Delete(context.Background(), name)
		require.Error(t, err, name)
	}
	require.Len(t, f.requests, 1)
}

func TestResponseError(t *testing.T) {
	f := &fakeCollection{status: map[string]int{http.MethodGet: http.StatusNotFound}}
	m := newTestManager(t, f)

	_, err := m.Get(context.Background(), "missing")
	var re *ResponseError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusNotFound, re.StatusCode)
	require.Contains(t, re.Body, "index_not_found_exception")
	require.True(t, IsNotFound(err))
}

func TestRecreate(t *testing.T) {
	t.Run("delete then create with faiss", func(t *testing.T) {
		f := &fakeCollection{}
		m := newTestManager(t, f)

		_, err := m.Recreate(context.Background(), IndexSpec{Name: "kb", Engine: "nmslib"})
		require.NoError(t, err)
		require.Len(t, f.requests, 2)
		require.Equal(t, http.MethodDelete, f.requests[0].method)
		require.Equal(t, http.MethodPut, f.requests[1].method)
		require.Contains(t, f.requests[1].body, `"engine":"faiss"`)
	})

	t.Run("missing index", func(t *testing.T) {
		f := &fakeCollection{status: map[string]int{http.MethodDelete: http.StatusNotFound}}
		m := newTestManager(t, f)

		_, err := m.Recreate(context.Background(), IndexSpec{Name: "kb"})
		require.NoError(t, err)
		require.Len(t, f.requests, 2)
	})

	t.Run("delete failure stops", func(t *testing.T) {
		f := &fakeCollection{status: map[string]int{http.MethodDelete: http.StatusForbidden}}
		m := newTestManager(t, f)

		_, err := m.Recreate(context.Background(), IndexSpec{Name: "kb"})
		require.Error(t, err)
		require.Len(t, f.requests, 1)
	})
}
