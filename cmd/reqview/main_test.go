package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/reqview/internal/domain"
	"github.com/xela07ax/reqview/internal/infra"
	"github.com/xela07ax/reqview/internal/report"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func testConfig(url, key string) *infra.Config {
	return &infra.Config{
		Source:   infra.SourceREST,
		Supabase: infra.SupabaseConfig{URL: url, Key: key},
		Client:   infra.ClientConfig{Timeout: 2 * time.Second, Retries: 1},
		CB:       infra.BreakerConfig{MaxRequests: 1, Interval: time.Second, Timeout: time.Second, MaxFailures: 5},
	}
}

type fakePostgREST struct {
	hits atomic.Int32
	srv  *httptest.Server
}

func newFakePostgREST(t *testing.T, h http.HandlerFunc) *fakePostgREST {
	t.Helper()
	f := &fakePostgREST{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func TestRunFetch(t *testing.T) {
	t.Run("prints N lines for N records", func(t *testing.T) {
		fake := newFakePostgREST(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/Request", r.URL.Path)
			assert.Equal(t, "*,Employee!Request_Approver_ID_fkey(*),RequestLog(*)", r.URL.Query().Get("select"))
			_, _ = w.Write([]byte(`[
				{"Request_ID":1,"Approver_ID":10,"Employee":{"Staff_ID":10},"RequestLog":[]},
				{"Request_ID":2,"Approver_ID":10,"Employee":{"Staff_ID":10},"RequestLog":[{"Log_ID":1}]},
				{"Request_ID":3,"Approver_ID":11,"Employee":{"Staff_ID":11},"RequestLog":[]}
			]`))
		})
		var out bytes.Buffer

		err := runFetch(context.Background(), testConfig(fake.srv.URL, "anon-key"), zaptest.NewLogger(t), &out)

		require.NoError(t, err)
		lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], `{"Request_ID":1,`))
		assert.True(t, strings.HasPrefix(lines[1], `{"Request_ID":2,`))
		assert.True(t, strings.HasPrefix(lines[2], `{"Request_ID":3,`))
	})

	t.Run("error response prints one failure line", func(t *testing.T) {
		fake := newFakePostgREST(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"public.Request\" does not exist"}`))
		})
		var out bytes.Buffer

		err := runFetch(context.Background(), testConfig(fake.srv.URL, "anon-key"), zaptest.NewLogger(t), &out)

		assert.ErrorIs(t, err, report.ErrFetchFailed)
		assert.Equal(t, "Error fetching data: 404 42P01: relation \"public.Request\" does not exist\n", out.String())
	})

	t.Run("server failure prints failure line with status", func(t *testing.T) {
		fake := newFakePostgREST(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		var out bytes.Buffer

		err := runFetch(context.Background(), testConfig(fake.srv.URL, "anon-key"), zaptest.NewLogger(t), &out)

		assert.ErrorIs(t, err, report.ErrFetchFailed)
		assert.True(t, strings.HasPrefix(out.String(), "Error fetching data: 500"))
		assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	})

	t.Run("missing key fails before any request", func(t *testing.T) {
		fake := newFakePostgREST(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})
		var out bytes.Buffer

		err := runFetch(context.Background(), testConfig(fake.srv.URL, ""), zaptest.NewLogger(t), &out)

		require.ErrorIs(t, err, infra.ErrMissingSupabaseKey)
		assert.Zero(t, fake.hits.Load())
		assert.Empty(t, out.String())
	})

	t.Run("missing url fails before any request", func(t *testing.T) {
		var out bytes.Buffer

		err := runFetch(context.Background(), testConfig("", "anon-key"), zaptest.NewLogger(t), &out)

		assert.ErrorIs(t, err, infra.ErrMissingSupabaseURL)
		assert.Empty(t, out.String())
	})

	t.Run("query is identical across runs", func(t *testing.T) {
		var (
			mu      sync.Mutex
			queries []string
		)
		fake := newFakePostgREST(t, func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			queries = append(queries, r.URL.RequestURI())
			mu.Unlock()
			_, _ = w.Write([]byte(`[]`))
		})
		cfg := testConfig(fake.srv.URL, "anon-key")

		for i := 0; i < 3; i++ {
			require.NoError(t, runFetch(context.Background(), cfg, zaptest.NewLogger(t), &bytes.Buffer{}))
		}

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, queries, 3)
		assert.Equal(t, queries[0], queries[1])
		assert.Equal(t, queries[1], queries[2])
	})
}

func TestSummarize(t *testing.T) {
	t.Run("rows with timestamps without zone", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		resp := &domain.Response{Status: 200, Data: []json.RawMessage{
			json.RawMessage(`{"Request_ID":1,"Status":"Pending","created_at":"2024-09-23T15:44:39","updated_at":"2024-09-23T15:44:39"}`),
			json.RawMessage(`{"Request_ID":2,"Status":"Approved","created_at":"2024-09-24T09:00:00"}`),
			json.RawMessage(`{"Request_ID":3,"Status":"Cancelled"}`),
		}}

		summarize(resp, zap.New(core))

		assert.Zero(t, logs.FilterMessage("rows do not match the Request shape").Len())
		fetched := logs.FilterMessage("requests fetched").All()
		require.Len(t, fetched, 1)
		assert.EqualValues(t, 3, fetched[0].ContextMap()["total"])
		unexpected := logs.FilterMessage("request with unexpected status").All()
		require.Len(t, unexpected, 1)
		assert.Equal(t, "Cancelled", unexpected[0].ContextMap()["status"])
	})

	t.Run("foreign row shape", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		resp := &domain.Response{Status: 200, Data: []json.RawMessage{json.RawMessage(`{"Request_ID":"x"}`)}}

		summarize(resp, zap.New(core))

		assert.Equal(t, 1, logs.FilterMessage("rows do not match the Request shape").Len())
		assert.Zero(t, logs.FilterMessage("requests fetched").Len())
	})
}
