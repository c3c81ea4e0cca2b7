package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/busim/monitoring"
	"github.com/sarchlab/busim/system"
)

var (
	words       int
	withMonitor bool
	monitorPort int
	openBrowser bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Write words across every mapped device and read them back",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("port") {
			cfg.Monitor.Port = monitorPort
		}

		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}

		s, err := system.Build(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.WithError(err).Error("flushing trace")
			}
		}()

		if !withMonitor {
			return exercise(s, logger, nil)
		}

		return runWithMonitor(cmd.Context(), s, logger, cfg.Monitor.Port)
	},
}

func init() {
	runCmd.Flags().IntVarP(&words, "words", "n", 16,
		"number of words to write and read back per device")
	runCmd.Flags().BoolVar(&withMonitor, "monitor", false,
		"serve the monitor until interrupted")
	runCmd.Flags().IntVar(&monitorPort, "port", 0,
		"monitor port; a random port is used if 0")
	runCmd.Flags().BoolVar(&openBrowser, "open", false,
		"open the monitor in a browser")

	rootCmd.AddCommand(runCmd)
}

func exercise(
	s *system.System,
	logger logrus.FieldLogger,
	bar *monitoring.ProgressBar,
) error {
	start := time.Now()

	accesses, err := s.Exercise(words)
	for _, a := range accesses {
		logger.WithFields(logrus.Fields{
			"device": a.Device,
			"kind":   a.Kind,
			"addr":   a.Address,
			"data":   a.Data,
			"ticks":  a.Ticks,
		}).Debug("access")
	}

	if bar != nil {
		bar.IncrementFinished(uint64(len(accesses)))
	}

	if err != nil {
		return err
	}

	avg, count := s.AverageLatency()
	logger.WithFields(logrus.Fields{
		"accesses":    count,
		"avg_latency": avg,
		"cycles":      s.Clock().CurrentTime(),
		"elapsed":     time.Since(start),
	}).Info("round trip passed")

	return nil
}

func runWithMonitor(
	ctx context.Context,
	s *system.System,
	logger logrus.FieldLogger,
	port int,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m := monitoring.NewMonitor().WithLogger(logger).WithPortNumber(port)
	m.RegisterClock(s.Clock())
	m.RegisterBus(s.Bus())
	for _, mem := range s.Memories() {
		m.RegisterComponent(mem)
	}

	actualPort, err := m.StartServer()
	if err != nil {
		return err
	}

	if openBrowser {
		if err := browser.OpenURL(monitoring.URL(actualPort)); err != nil {
			logger.WithError(err).Warn("cannot open browser")
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(m.Serve)

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return m.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		total := uint64(0)
		for _, w := range s.Windows() {
			total += 2 * uint64(min(int64(words), (w.End()-w.Start())/4))
		}

		bar := m.CreateProgressBar("round trip", total)

		var err error
		m.Do(func() { err = exercise(s, logger, bar) })
		if err != nil {
			return errors.Wrap(err, "round trip")
		}

		logger.Info("round trip finished, serving the monitor until interrupted")

		return nil
	})

	return g.Wait()
}
