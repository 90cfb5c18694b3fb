package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trafficlens/trafficlens/internal/api/models"
	"github.com/trafficlens/trafficlens/internal/area"
)

func areaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "area",
		Short: "Manage monitored areas",
		Long:  "Create, list, and inspect areas in the TrafficLens store",
	}

	cmd.AddCommand(areaCreateCmd())
	cmd.AddCommand(areaListCmd())
	cmd.AddCommand(areaGetCmd())
	cmd.AddCommand(areaStatsCmd())

	return cmd
}

func areaCreateCmd() *cobra.Command {
	var (
		south, west, north, east float64
		resolution               int
		days                     int
		interval                 int
		networkRef               string
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new area with its sampling grid",
		Long: `Create an area over a bounding box. The sampling grid is generated
once at creation and stays fixed for the area's lifetime.

Examples:
  trafficctl area create "Rotterdam Centrum" \
    --south 51.90 --west 4.45 --north 51.93 --east 4.50 --resolution 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			req := &models.AreaCreateRequest{
				Name: args[0],
				Bounds: models.BoundingBox{
					South: south,
					West:  west,
					North: north,
					East:  east,
				},
				Resolution:      resolution,
				DurationDays:    days,
				IntervalMinutes: interval,
			}
			if networkRef != "" {
				req.NetworkRef = &networkRef
			}

			created, err := st.service.Create(ctx, req)
			if err != nil {
				return renderAreaError(err)
			}

			fmt.Printf("✓ Created area %s: %s\n", created.ID, created.Name)
			fmt.Printf("  Grid:   %d points, %d routes (resolution %d)\n",
				created.PointCount, created.RouteCount, created.Resolution)
			fmt.Printf("  Target: %d snapshots over %d days, one every %d minutes\n",
				created.TargetCount, created.DurationDays, created.IntervalMinutes)
			return nil
		},
	}

	cmd.Flags().Float64Var(&south, "south", 0, "southern latitude of the bounding box")
	cmd.Flags().Float64Var(&west, "west", 0, "western longitude of the bounding box")
	cmd.Flags().Float64Var(&north, "north", 0, "northern latitude of the bounding box")
	cmd.Flags().Float64Var(&east, "east", 0, "eastern longitude of the bounding box")
	cmd.Flags().IntVar(&resolution, "resolution", 4, "grid resolution (lattice points per side)")
	cmd.Flags().IntVar(&days, "days", 7, "training window in days")
	cmd.Flags().IntVar(&interval, "interval", 15, "minutes between snapshots")
	cmd.Flags().StringVar(&networkRef, "network", "", "optional road network reference")
	cmd.MarkFlagRequired("south")
	cmd.MarkFlagRequired("west")
	cmd.MarkFlagRequired("north")
	cmd.MarkFlagRequired("east")

	return cmd
}

func areaListCmd() *cobra.Command {
	var (
		status string
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List areas",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			page, err := st.service.List(ctx, limit, cursor, status)
			if err != nil {
				return renderAreaError(err)
			}

			if len(page.Items) == 0 {
				fmt.Println("No areas found")
				return nil
			}

			fmt.Printf("\n%-28s %-10s %8s %s\n", "ID", "STATUS", "TARGET", "NAME")
			fmt.Println("────────────────────────────────────────────────────────────────")
			for _, a := range page.Items {
				fmt.Printf("%-28s %-10s %8d %s\n", a.ID, a.Status, a.TargetCount, a.Name)
			}
			fmt.Println()

			if page.Meta.NextCursor != nil {
				fmt.Printf("More areas available: --cursor %q\n", *page.Meta.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by lifecycle status")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum areas to return")
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume a previous listing")

	return cmd
}

func areaGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [area-id]",
		Short: "Show area details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			a, err := st.service.Get(ctx, args[0])
			if err != nil {
				return renderAreaError(err)
			}

			fmt.Printf("\nArea:       %s\n", a.ID)
			fmt.Printf("Name:       %s\n", a.Name)
			fmt.Printf("Status:     %s\n", colorizeStatus(a.Status))
			fmt.Printf("Bounds:     S %.5f  W %.5f  N %.5f  E %.5f\n",
				a.Bounds.South, a.Bounds.West, a.Bounds.North, a.Bounds.East)
			fmt.Printf("Grid:       resolution %d, %d points, %d routes\n",
				a.Resolution, a.PointCount, a.RouteCount)
			fmt.Printf("Training:   %d days at %d minute intervals (target %d)\n",
				a.DurationDays, a.IntervalMinutes, a.TargetCount)
			if a.NetworkRef != nil {
				fmt.Printf("Network:    %s\n", *a.NetworkRef)
			}
			fmt.Printf("Created:    %s\n", a.CreatedAt.Time().Format("2006-01-02 15:04"))
			fmt.Printf("Updated:    %s\n", a.UpdatedAt.Time().Format("2006-01-02 15:04"))
			fmt.Println()

			return nil
		},
	}
	return cmd
}

func areaStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [area-id]",
		Short: "Show an area's collection progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			s, err := st.service.Stats(ctx, args[0])
			if err != nil {
				return renderAreaError(err)
			}

			fmt.Printf("\nArea:       %s\n", s.AreaID)
			fmt.Printf("Status:     %s\n", colorizeStatus(s.Status))
			fmt.Printf("Collected:  %d of %d (%d remaining)\n", s.Collected, s.Target, s.Remaining)
			if s.Target > 0 {
				fmt.Printf("Progress:   %.1f%%\n", float64(s.Collected)/float64(s.Target)*100)
			}
			if s.Latest != nil {
				fmt.Printf("Latest:     snapshot %d at %s, %s\n",
					s.Latest.Seq,
					s.Latest.CapturedAt.Time().Format("2006-01-02 15:04"),
					describeSpeeds(s.Latest))
			}
			fmt.Println()

			return nil
		},
	}
	return cmd
}

// describeSpeeds summarizes a snapshot's aggregate for one-line output.
func describeSpeeds(snap *models.Snapshot) string {
	if !snap.Available {
		return "no routes available"
	}
	return fmt.Sprintf("avg %.1f km/h (%d/%d routes)",
		snap.AvgSpeedKMH, snap.SampleCount, snap.RouteCount)
}

// renderAreaError expands validation failures into per-field lines; other
// errors pass through untouched.
func renderAreaError(err error) error {
	var vErr *area.ValidationError
	if errors.As(err, &vErr) {
		for _, fe := range vErr.Errors {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", fe.Field, fe.Message)
		}
		return errors.New("validation failed")
	}
	return err
}
