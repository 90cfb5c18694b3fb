package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/collector"
	"github.com/trafficlens/trafficlens/internal/provider/resilience"
	"github.com/trafficlens/trafficlens/internal/snapshot"
	"github.com/trafficlens/trafficlens/internal/traffic/googlemaps"
)

func trainingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "training",
		Short: "Run and plan training collections",
	}

	cmd.AddCommand(trainingRunCmd())
	cmd.AddCommand(trainingTargetCmd())

	return cmd
}

func trainingRunCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "run [area-id]",
		Short: "Run a training collection in the foreground",
		Long: `Run a training collection against the live traffic provider until the
area's target count is reached. One line is printed per snapshot.
Ctrl+C stops the run cooperatively and leaves the area resumable.

Requires GOOGLE_MAPS_API_KEY to be set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("GOOGLE_MAPS_API_KEY is not set")
			}

			ctx := cmd.Context()
			areaID := args[0]

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			// Progress goes to stdout; keep the component logs quiet
			// unless something goes wrong.
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)

			estimator := googlemaps.NewClient(googlemaps.ClientConfig{
				APIKey:   apiKey,
				Registry: resilience.NewRegistry(),
				Logger:   logger,
			})

			sampler := snapshot.NewSampler(snapshot.SamplerConfig{
				Estimator:   estimator,
				Concurrency: concurrency,
				Logger:      logger,
			})

			scheduler := collector.NewScheduler(collector.SchedulerConfig{
				Areas:     st.areas,
				Snapshots: st.snapshots,
				Sampler:   sampler,
				Logger:    logger,
			})

			run, err := scheduler.Start(ctx, areaID)
			if err != nil {
				return err
			}

			fmt.Printf("Training %s: %d of %d snapshots collected\n", areaID, run.Collected(), run.Target)
			fmt.Println("Press Ctrl+C to stop; the run stays resumable.")

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigs)
			go func() {
				<-sigs
				fmt.Println("\nStopping run...")
				if err := scheduler.Cancel(areaID); err != nil && !errors.Is(err, collector.ErrNoActiveRun) {
					fmt.Fprintf(os.Stderr, "failed to stop run: %v\n", err)
				}
			}()

			for ev := range run.Events() {
				switch ev.Kind {
				case collector.EventProgress:
					renderProgress(ev)
				case collector.EventTerminal:
					return renderOutcome(ev)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", snapshot.DefaultConcurrency, "concurrent route estimates per snapshot")

	return cmd
}

func renderProgress(ev collector.Event) {
	speeds := "no routes available"
	if ev.Summary != nil && ev.Summary.Available {
		speeds = fmt.Sprintf("avg %.1f km/h (%d/%d routes)",
			ev.Summary.AvgSpeedKMH, ev.Summary.SampleCount, ev.Summary.RouteCount)
	}
	fmt.Printf("%s snapshot %d/%d  %s\n",
		color.New(color.FgHiGreen).Sprint("✓"), ev.Collected, ev.Target, speeds)
}

func renderOutcome(ev collector.Event) error {
	switch ev.Outcome {
	case collector.OutcomeCompleted:
		fmt.Printf("%s Training completed: %d of %d snapshots\n",
			color.New(color.FgHiGreen).Sprint("✓"), ev.Collected, ev.Target)
		return nil
	case collector.OutcomeCancelled:
		fmt.Printf("%s Training stopped at %d of %d snapshots; run again to resume\n",
			color.New(color.FgYellow).Sprint("⚠"), ev.Collected, ev.Target)
		return nil
	case collector.OutcomeFailed:
		fmt.Printf("%s Training failed at %d of %d snapshots: %s\n",
			color.New(color.FgRed).Sprint("✗"), ev.Collected, ev.Target, ev.Reason)
		return errors.New("training run failed")
	default:
		return nil
	}
}

func trainingTargetCmd() *cobra.Command {
	var (
		days       int
		interval   int
		resolution int
	)

	cmd := &cobra.Command{
		Use:   "target",
		Short: "Compute a training target without creating an area",
		Long: `Compute how many snapshots a training window yields at a given
interval. With --resolution, also shows the grid size and the total
number of route samples the run will collect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			if interval < 1 {
				return fmt.Errorf("--interval must be at least 1")
			}

			target := area.ComputeTargetCount(days, interval)
			if target < 1 {
				return fmt.Errorf("a %d minute interval leaves no sampling slots in %d days", interval, days)
			}

			fmt.Printf("\nWindow:   %d days at %d minute intervals\n", days, interval)
			fmt.Printf("Target:   %d snapshots\n", target)

			if cmd.Flags().Changed("resolution") {
				if resolution < area.MinResolution || resolution > area.MaxResolution {
					return fmt.Errorf("--resolution must be between %d and %d", area.MinResolution, area.MaxResolution)
				}
				points := resolution * resolution
				routes := 2 * resolution * (resolution - 1)
				fmt.Printf("Grid:     %d points, %d routes per snapshot\n", points, routes)
				fmt.Printf("Samples:  %d route samples in total\n", target*routes)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "training window in days")
	cmd.Flags().IntVar(&interval, "interval", 15, "minutes between snapshots")
	cmd.Flags().IntVar(&resolution, "resolution", 0, "grid resolution to include route sample counts")

	return cmd
}
