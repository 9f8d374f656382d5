package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	paths   []string
	prompts []string
	keys    []string
	reply   string
	status  int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	key := r.URL.Query().Get("key")
	if key == "" {
		key = r.Header.Get("X-Goog-Api-Key")
	}

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.keys = append(f.keys, key)
	if len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
		f.prompts = append(f.prompts, body.Contents[0].Parts[0].Text)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal"}}`))
		return
	}
	_, _ = w.Write([]byte(f.reply))
}

func newModel(t *testing.T, api *fakeAPI) *Model {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	m, err := New(context.Background(), Options{APIKey: "test-key", Endpoint: srv.URL + "/"})
	require.NoError(t, err)
	return m
}

func TestModel_Generate(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{reply: `{"candidates":[{"content":{"role":"model","parts":[{"text":"Jam kerja "},{"text":"08:00-16:00. "}]}}]}`}
	m := newModel(t, api)

	got, err := m.Generate(context.Background(), "Pertanyaan: jam kerja?")
	require.NoError(t, err)
	assert.Equal(t, "Jam kerja 08:00-16:00.", got)

	require.Len(t, api.paths, 1)
	assert.True(t, strings.HasSuffix(api.paths[0], "/models/gemini-2.5-flash:generateContent"), api.paths[0])
	assert.Equal(t, []string{"Pertanyaan: jam kerja?"}, api.prompts)
	assert.Equal(t, []string{"test-key"}, api.keys)
}

func TestModel_GenerateEmptyCandidates(t *testing.T) {
	t.Parallel()

	m := newModel(t, &fakeAPI{reply: `{"candidates":[]}`})
	got, err := m.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestModel_GenerateBlocked(t *testing.T) {
	t.Parallel()

	m := newModel(t, &fakeAPI{reply: `{"promptFeedback":{"blockReason":"SAFETY"}}`})
	_, err := m.Generate(context.Background(), "x")
	require.ErrorIs(t, err, ErrBlocked)
}

func TestModel_GenerateHTTPError(t *testing.T) {
	t.Parallel()

	m := newModel(t, &fakeAPI{status: http.StatusInternalServerError})
	_, err := m.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBlocked))
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Options{})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestModelResource(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "models/gemini-2.5-flash", modelResource("gemini-2.5-flash"))
	assert.Equal(t, "models/custom", modelResource("models/custom"))
}
