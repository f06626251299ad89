package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/utmisim/phy"
	"github.com/ardnew/utmisim/phy/sim"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/report"
	"github.com/ardnew/utmisim/session"
	"github.com/ardnew/utmisim/store"
	"github.com/ardnew/utmisim/timing"
)

// errRunFailed is returned when a scenario records faults. The report has
// already been printed, so main exits without repeating it.
var errRunFailed = errors.New("run failed")

const (
	AllOptionName    = "all"
	ListOptionName   = "list"
	TraceOptionName  = "trace"
	PDFOptionName    = "pdf"
	RecordOptionName = "record"
)

type runOptions struct {
	all    bool
	list   bool
	speed  string
	trace  bool
	pdf    string
	record bool
	store  string
}

func newRunCommand(opts *options) *cobra.Command {
	var ro runOptions
	cmd := &cobra.Command{
		Use:   "run [SCENARIO...]",
		Short: "Run scenarios against the simulated device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ro.list {
				for _, sc := range session.Scenarios() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", sc.Name, sc.Description)
				}
				return nil
			}
			var scenarios []session.Scenario
			if ro.all {
				scenarios = session.Scenarios()
			}
			for _, name := range args {
				sc, err := session.Lookup(name)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}
			if len(scenarios) == 0 {
				return fmt.Errorf("no scenario given; use --%s or --%s", AllOptionName, ListOptionName)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			return runScenarios(ctx, cmd, opts, ro, scenarios)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&ro.all, AllOptionName, false, "Run every scenario")
	flags.BoolVar(&ro.list, ListOptionName, false, "List the available scenarios")
	flags.StringVar(&ro.speed, SpeedOptionName, "", "Bus speed: FS or HS")
	flags.BoolVar(&ro.trace, TraceOptionName, false, "Print the packet trace of each run")
	flags.StringVar(&ro.pdf, PDFOptionName, "", "Write a PDF report per scenario into this directory")
	flags.BoolVar(&ro.record, RecordOptionName, false, "Record each run in the store")
	flags.StringVar(&ro.store, StoreOptionName, "", "Store database path")
	return cmd
}

func runScenarios(ctx context.Context, cmd *cobra.Command, opts *options, ro runOptions, scenarios []session.Scenario) error {
	speed := opts.cfg.BusSpeed()
	if ro.speed != "" {
		s, err := timing.ParseSpeed(ro.speed)
		if err != nil {
			return err
		}
		speed = s
	}

	var db *store.Store
	if ro.record {
		var err error
		if db, err = store.Open(storePath(opts, ro.store)); err != nil {
			return err
		}
		defer db.Close()
	}
	if ro.pdf != "" {
		if err := os.MkdirAll(ro.pdf, 0o755); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, sc := range scenarios {
		started := time.Now()
		rep, err := runScenario(ctx, opts, sc, speed)
		if err != nil {
			return fmt.Errorf("%s: %w", sc.Name, err)
		}
		elapsed := time.Since(started)

		if ro.trace {
			if err := report.WriteText(out, sc.Name, rep); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "%-10s %s\n", sc.Name, rep.Summary())
		}
		if ro.pdf != "" {
			name := fmt.Sprintf("%s-%s.pdf", sc.Name, strings.ToLower(speed.String()))
			if err := report.SavePDF(rep, sc.Name, filepath.Join(ro.pdf, name)); err != nil {
				return err
			}
		}
		if db != nil {
			id, err := db.PutRun(store.FromReport(sc.Name, rep, started, elapsed))
			if err != nil {
				return err
			}
			pkg.LogInfo(pkg.ComponentCLI, "run recorded", "scenario", sc.Name, "id", id)
		}
		if !rep.Passed() {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(out, "%d of %d scenarios failed\n", failed, len(scenarios))
		return errRunFailed
	}
	return nil
}

func runScenario(ctx context.Context, opts *options, sc session.Scenario, speed timing.Speed) (*session.Report, error) {
	addr := uint8(opts.cfg.Device.Address)

	bus := sim.NewBus()
	dut := sim.NewDevice(addr)
	bus.SetResponder(dut, opts.cfg.Device.Turnaround)

	s := session.New(speed, addr)
	sc.Build(s, dut)

	drv := phy.NewDriver(bus, speed, opts.cfg.Table())
	return s.Run(ctx, drv)
}
