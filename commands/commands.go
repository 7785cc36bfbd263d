package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scode/transitprobe/analysis"
	"github.com/scode/transitprobe/corpus"
	"github.com/scode/transitprobe/preader"
	"github.com/scode/transitprobe/report"
	"github.com/scode/transitprobe/rewardsapi"
	"github.com/scode/transitprobe/stub"
	"github.com/scode/transitprobe/transit"
)

// Preflight validates cfg and checks that something accepts TCP connections at the service
// endpoint, so a misconfigured run fails before any record is generated.
func Preflight(cfg corpus.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid run configuration: %w", err)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid service url %q: %w", cfg.BaseURL, err)
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	conn, err := net.DialTimeout("tcp", host, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("encryption service at %s is not reachable: %w", cfg.BaseURL, err)
	}
	return conn.Close()
}

type RunOptions struct {
	Config     corpus.Config
	Histograms bool
	CSVPath    string // sample sets as CSV, skipped when empty
	XLSXPath   string // sample sets as an XLSX workbook, skipped when empty

	Stdout   io.Writer
	Progress io.Writer // nil disables progress output
	Redraw   bool      // redraw progress in place instead of logging every tenth
}

// Run executes one harness run and prints its summary. Nothing is printed or exported unless
// every round trip was verified.
func Run(ctx context.Context, opts RunOptions) (report.Summary, error) {
	cfg := opts.Config
	if err := Preflight(cfg); err != nil {
		return report.Summary{}, err
	}

	client := rewardsapi.New(cfg.BaseURL, cfg.Timeout)
	driver, err := corpus.New(cfg, client)
	if err != nil {
		return report.Summary{}, err
	}
	if opts.Progress != nil {
		driver.OnProgress(newProgressPrinter(opts.Progress, opts.Redraw).update)
	}

	s := report.Summary{
		RunID:   uuid.NewString(),
		Target:  client.BaseURL(),
		Started: time.Now(),
	}
	log.Printf("  [probe] run %s: %d identical and %d random records against %s",
		s.RunID, cfg.IdenticalCount, cfg.RandomCount, s.Target)

	results, summary, err := corpus.Collect(ctx, driver)
	s.Run = summary
	if err != nil {
		log.Printf("  [probe] run %s aborted after %d of %d records, no report produced",
			s.RunID, summary.Completed, summary.Planned)
		return s, err
	}

	s.Report = analysis.Analyze(results)

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if err := report.WriteSummary(stdout, s, opts.Histograms); err != nil {
		return s, fmt.Errorf("failed to write summary: %w", err)
	}

	if opts.CSVPath != "" {
		if err := writeSamplesFile(opts.CSVPath, s); err != nil {
			return s, err
		}
	}
	if opts.XLSXPath != "" {
		if err := report.WriteWorkbook(opts.XLSXPath, s); err != nil {
			return s, fmt.Errorf("failed to write %s: %w", opts.XLSXPath, err)
		}
	}

	return s, nil
}

func writeSamplesFile(path string, s report.Summary) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := report.WriteSamplesCSV(f, s.RunID, report.DistributionsOf(s.Report)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

type ServeOptions struct {
	Addr       string
	DBPath     string
	BasePath   string
	Passphrase preader.PassphraseReader
	Convergent bool

	// OnListen, if set, is called with the bound address before requests are served.
	OnListen func(net.Addr)
}

// Serve runs the stand-in rewards service until ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions) error {
	passphrase, err := opts.Passphrase.ReadPassphrase()
	if err != nil {
		return err
	}

	var engineOpts []transit.Option
	if opts.Convergent {
		engineOpts = append(engineOpts, transit.Convergent())
	}
	engine, err := transit.New(passphrase, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to set up transit engine: %w", err)
	}

	store, err := stub.OpenStore(opts.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}
	if opts.OnListen != nil {
		opts.OnListen(ln.Addr())
	}

	srv := &http.Server{
		Handler:           stub.NewServer(opts.BasePath, store, engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("  [stub] serving %s on %s (convergent=%t)", opts.BasePath, ln.Addr(), opts.Convergent)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
