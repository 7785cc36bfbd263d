package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/scode/transitprobe/analysis"
	"github.com/scode/transitprobe/corpus"
	"github.com/scode/transitprobe/preader"
	"github.com/scode/transitprobe/rewardsapi"
	"github.com/scode/transitprobe/stub"
	"github.com/scode/transitprobe/transit"
)

func newStub(t *testing.T, wrap func(http.Handler) http.Handler, opts ...transit.Option) *httptest.Server {
	store, err := stub.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	engine, err := transit.New("test", opts...)
	require.NoError(t, err)

	var h http.Handler = stub.NewServer(stub.DefaultBasePath, store, engine)
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func smallConfig(baseURL string) corpus.Config {
	cfg := corpus.DefaultConfig()
	cfg.BaseURL = baseURL + stub.DefaultBasePath
	cfg.IdenticalCount = 5
	cfg.RandomCount = 5
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestRunAgainstStub(t *testing.T) {
	srv := newStub(t, nil)
	dir := t.TempDir()

	var out, progress bytes.Buffer
	s, err := Run(context.Background(), RunOptions{
		Config:     smallConfig(srv.URL),
		Histograms: true,
		CSVPath:    filepath.Join(dir, "samples.csv"),
		XLSXPath:   filepath.Join(dir, "samples.xlsx"),
		Stdout:     &out,
		Progress:   &progress,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, s.Run.Completed)
	assert.NotEmpty(t, s.RunID)
	r := s.Report
	assert.LessOrEqual(t, r.Uniqueness.Ratio, 1.0)
	assert.Equal(t, 5, r.Uniqueness.Total)
	assert.Equal(t, 0, r.Uniqueness.Duplicates)
	assert.Greater(t, r.Entropy.Mean, 0.0)
	assert.Len(t, r.Entropy.Samples, 10)
	assert.GreaterOrEqual(t, r.Latency.Encrypt.Mean, 0.0)
	assert.GreaterOrEqual(t, r.Latency.Encrypt.P95, r.Latency.Encrypt.Mean)
	assert.Len(t, r.Latency.Decrypt.SamplesMS, 10)

	assert.Contains(t, out.String(), "Run "+s.RunID)
	assert.Contains(t, out.String(), "Semantic security check: 5/5 ciphertexts unique (100%), 0 duplicates")
	assert.Contains(t, out.String(), "Encrypt latency (ms)")
	assert.Contains(t, progress.String(), "identical records: 5/5 (100%)")
	assert.Contains(t, progress.String(), "random records: 5/5 (100%)")

	wb, err := excelize.OpenFile(filepath.Join(dir, "samples.xlsx"))
	require.NoError(t, err)
	defer wb.Close()
	assert.Contains(t, wb.GetSheetList(), "Latency")
}

func TestRunAgainstConvergentStubFindsDuplicates(t *testing.T) {
	srv := newStub(t, nil, transit.Convergent())

	var out bytes.Buffer
	s, err := Run(context.Background(), RunOptions{Config: smallConfig(srv.URL), Stdout: &out})
	require.NoError(t, err)

	u := s.Report.Uniqueness
	assert.Equal(t, 1, u.Distinct)
	assert.Equal(t, 4, u.Duplicates)
	assert.InDelta(t, 0.2, u.Ratio, 1e-9)

	worst, ok := s.Report.Worst()
	require.True(t, ok)
	assert.Equal(t, analysis.Critical, worst)
	assert.Contains(t, out.String(), "semantic-security")
}

func TestRunStopsOnCorrectnessViolation(t *testing.T) {
	var (
		mu           sync.Mutex
		decryptCalls []string
	)
	srv := newStub(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "/decrypt/") {
				mu.Lock()
				decryptCalls = append(decryptCalls, r.URL.Path)
				mu.Unlock()
			}
			if r.URL.Path == stub.DefaultBasePath+"/decrypt/3" {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id": 3, "name": "id_same_2", "value": 0.01}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	var out bytes.Buffer
	s, err := Run(context.Background(), RunOptions{Config: smallConfig(srv.URL), Stdout: &out})
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrCorrectness)

	var ce *corpus.CorrectnessError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(3), ce.RecordID)
	assert.Equal(t, "0.01", ce.Got)

	assert.Equal(t, 2, s.Run.Completed)
	mu.Lock()
	assert.Len(t, decryptCalls, 3)
	mu.Unlock()
	assert.Empty(t, out.String())
}

func TestPreflight(t *testing.T) {
	srv := newStub(t, nil)
	assert.NoError(t, Preflight(smallConfig(srv.URL)))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	err = Preflight(smallConfig(closed))
	assert.ErrorContains(t, err, "not reachable")

	cfg := smallConfig(srv.URL)
	cfg.Workers = 0
	err = Preflight(cfg)
	assert.ErrorContains(t, err, "invalid run configuration")

	_, err = Run(context.Background(), RunOptions{Config: smallConfig(closed)})
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrs := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ServeOptions{
			Addr:       "127.0.0.1:0",
			DBPath:     filepath.Join(t.TempDir(), "rewards.db"),
			BasePath:   stub.DefaultBasePath,
			Passphrase: preader.NewConstant("test"),
			OnListen:   func(a net.Addr) { addrs <- a },
		})
	}()

	var addr net.Addr
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	}

	c := rewardsapi.New("http://"+addr.String()+stub.DefaultBasePath, 5*time.Second)
	created, err := c.Create(ctx, "probe", "12.34")
	require.NoError(t, err)
	dec, err := c.Decrypt(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.34", dec.Value)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestExportCorpus(t *testing.T) {
	cfg := corpus.DefaultConfig()
	cfg.IdenticalCount = 2
	cfg.RandomCount = 3

	var first, second bytes.Buffer
	require.NoError(t, ExportCorpus(cfg, &first))
	require.NoError(t, ExportCorpus(cfg, &second))
	assert.Equal(t, first.String(), second.String())

	rows, err := csv.NewReader(&first).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"index", "label", "kind", "value"}, rows[0])
	assert.Equal(t, []string{"0", "id_same_0", "identical", "42.00"}, rows[1])
	assert.Equal(t, "id_rand_0", rows[3][1])
	assert.Equal(t, "random", rows[3][2])
}

func TestProgressLogsEveryTenth(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, false)
	for i := 1; i <= 20; i++ {
		p.update(corpus.Progress{Kind: corpus.Random, Done: i, Total: 20})
	}
	assert.Equal(t, 10, strings.Count(buf.String(), "\n"))

	buf.Reset()
	p = newProgressPrinter(&buf, true)
	p.update(corpus.Progress{Kind: corpus.Identical, Done: 1, Total: 2})
	p.update(corpus.Progress{Kind: corpus.Identical, Done: 2, Total: 2})
	assert.Equal(t, "\r  [probe] identical 1/2\r  [probe] identical 2/2\n", buf.String())
}
