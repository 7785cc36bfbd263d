package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/scode/transitprobe/commands"
	"github.com/scode/transitprobe/corpus"
	"github.com/scode/transitprobe/preader"
	"github.com/scode/transitprobe/stub"
)

func configFlags(cfg *corpus.Config) []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:        "identical",
			Usage:       "Number of records that all carry the identical value",
			EnvVar:      "PROBE_IDENTICAL",
			Value:       cfg.IdenticalCount,
			Destination: &cfg.IdenticalCount,
		},
		cli.IntFlag{
			Name:        "random",
			Usage:       "Number of records with randomly drawn values",
			EnvVar:      "PROBE_RANDOM",
			Value:       cfg.RandomCount,
			Destination: &cfg.RandomCount,
		},
		cli.StringFlag{
			Name:        "value",
			Usage:       "Decimal value shared by the identical records",
			EnvVar:      "PROBE_VALUE",
			Value:       cfg.IdenticalValue,
			Destination: &cfg.IdenticalValue,
		},
		cli.StringFlag{
			Name:        "min",
			Usage:       "Smallest random value (inclusive, two decimals)",
			EnvVar:      "PROBE_MIN",
			Value:       cfg.MinValue,
			Destination: &cfg.MinValue,
		},
		cli.StringFlag{
			Name:        "max",
			Usage:       "Largest random value (inclusive, two decimals)",
			EnvVar:      "PROBE_MAX",
			Value:       cfg.MaxValue,
			Destination: &cfg.MaxValue,
		},
		cli.Int64Flag{
			Name:        "seed",
			Usage:       "Seed for random value generation",
			EnvVar:      "PROBE_SEED",
			Value:       cfg.Seed,
			Destination: &cfg.Seed,
		},
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "transitprobe"
	app.Version = "unknown (master)"
	app.Usage = "black-box validation of an at-rest encryption service"
	app.HideVersion = true

	var passphraseStdinArg bool
	getPassphraseReader := func() preader.PassphraseReader {
		if passphraseStdinArg {
			return preader.NewReader(os.Stdin)
		}

		return preader.NewFirst(preader.NewEnv("TRANSIT_PASSPHRASE"), preader.NewTerminal())
	}

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:        "passphrase-stdin",
			Usage:       "Read the stand-in service passphrase from stdin instead of TRANSIT_PASSPHRASE or the terminal",
			Destination: &passphraseStdinArg,
		},
	}

	runCfg := corpus.DefaultConfig()
	var runOpts commands.RunOptions
	runFlags := append(configFlags(&runCfg),
		cli.StringFlag{
			Name:        "url, u",
			Usage:       "Rewards collection endpoint of the service under test",
			EnvVar:      "REWARDS_URL",
			Value:       runCfg.BaseURL,
			Destination: &runCfg.BaseURL,
		},
		cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout for each request",
			EnvVar:      "PROBE_TIMEOUT",
			Value:       runCfg.Timeout,
			Destination: &runCfg.Timeout,
		},
		cli.IntFlag{
			Name:        "workers, w",
			Usage:       "Records in flight at once; 1 runs strictly sequentially",
			EnvVar:      "PROBE_WORKERS",
			Value:       runCfg.Workers,
			Destination: &runCfg.Workers,
		},
		cli.Float64Flag{
			Name:        "max-failure-rate",
			Usage:       "Fraction of records allowed to fail at the service before the run aborts",
			Value:       runCfg.MaxFailureRate,
			Destination: &runCfg.MaxFailureRate,
		},
		cli.BoolFlag{
			Name:        "histograms",
			Usage:       "Print text histograms of latencies and entropy after the summary",
			Destination: &runOpts.Histograms,
		},
		cli.StringFlag{
			Name:        "csv",
			Usage:       "Write the sample sets to this CSV file",
			Destination: &runOpts.CSVPath,
		},
		cli.StringFlag{
			Name:        "xlsx",
			Usage:       "Write the sample sets to this XLSX workbook",
			Destination: &runOpts.XLSXPath,
		},
	)

	corpusCfg := corpus.DefaultConfig()
	var corpusOutputArg string

	serveOpts := commands.ServeOptions{
		Addr:     ":5268",
		DBPath:   "rewards.db",
		BasePath: stub.DefaultBasePath,
	}

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "Run the harness against an encryption service",
			Description: `Pushes a corpus of identical and random reward values through the service, verifies that every
   value decrypts back unchanged, and reports ciphertext uniqueness, entropy and latency.

   The run aborts without a report as soon as any value fails to round-trip.`,
			Flags: runFlags,
			Action: func(c *cli.Context) error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				runOpts.Config = runCfg
				runOpts.Progress = os.Stderr
				runOpts.Redraw = term.IsTerminal(int(os.Stderr.Fd()))
				_, err := commands.Run(ctx, runOpts)
				return err
			},
		},
		{
			Name:  "serve",
			Usage: "Serve a local stand-in for the rewards service",
			Description: `Serves the rewards API with values encrypted at rest by a local transit engine, whose keys are
   derived from a passphrase (TRANSIT_PASSPHRASE, stdin with --passphrase-stdin, or a terminal prompt).

   With --convergent equal values encrypt to equal ciphertexts, which the harness should flag.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "addr",
					Usage:       "Address to listen on",
					Value:       serveOpts.Addr,
					Destination: &serveOpts.Addr,
				},
				cli.StringFlag{
					Name:        "db",
					Usage:       "SQLite database file (\":memory:\" keeps nothing)",
					Value:       serveOpts.DBPath,
					Destination: &serveOpts.DBPath,
				},
				cli.StringFlag{
					Name:        "base-path",
					Usage:       "Path the rewards collection is served under",
					Value:       serveOpts.BasePath,
					Destination: &serveOpts.BasePath,
				},
				cli.BoolFlag{
					Name:        "convergent",
					Usage:       "Encrypt equal values to equal ciphertexts",
					Destination: &serveOpts.Convergent,
				},
			},
			Action: func(c *cli.Context) error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				serveOpts.Passphrase = getPassphraseReader()
				return commands.Serve(ctx, serveOpts)
			},
		},
		{
			Name:  "corpus",
			Usage: "Write the generated plaintext corpus as CSV",
			Description: `Generates the corpus a run with the same settings would use and writes it without contacting
   any service.`,
			Flags: append(configFlags(&corpusCfg),
				cli.StringFlag{
					Name:        "output, o",
					Usage:       "Path to write the CSV to; standard output if omitted",
					Destination: &corpusOutputArg,
				},
			),
			Action: func(c *cli.Context) error {
				if corpusOutputArg == "" {
					return commands.ExportCorpus(corpusCfg, os.Stdout)
				}
				f, err := os.Create(corpusOutputArg)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", corpusOutputArg, err)
				}
				if err := commands.ExportCorpus(corpusCfg, f); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			},
		},
	}

	app.Action = func(c *cli.Context) error {
		return errors.New("command is required; use help to see list of commands")
	}

	return app
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
