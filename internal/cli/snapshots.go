package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func snapshotsCmd() *cobra.Command {
	var (
		limit  int
		cursor string
		seq    int
	)

	cmd := &cobra.Command{
		Use:   "snapshots [area-id]",
		Short: "List an area's snapshots",
		Long: `List snapshot summaries for an area, newest first. Use --seq to show
one snapshot with its per-route samples.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			if cmd.Flags().Changed("seq") {
				return showSnapshot(ctx, st, args[0], seq)
			}
			return listSnapshots(ctx, st, args[0], limit, cursor)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum snapshots to return")
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume a previous listing")
	cmd.Flags().IntVar(&seq, "seq", 0, "show a single snapshot with per-route samples")

	return cmd
}

func listSnapshots(ctx context.Context, st *stores, areaID string, limit int, cursor string) error {
	page, err := st.service.Snapshots(ctx, areaID, limit, cursor)
	if err != nil {
		return renderAreaError(err)
	}

	if len(page.Items) == 0 {
		fmt.Println("No snapshots found")
		return nil
	}

	fmt.Printf("\n%5s %-17s %9s %9s %9s %9s\n", "SEQ", "CAPTURED", "AVG KM/H", "MIN", "MAX", "ROUTES")
	fmt.Println("────────────────────────────────────────────────────────────────")
	for _, snap := range page.Items {
		captured := snap.CapturedAt.Time().Format("2006-01-02 15:04")
		if !snap.Available {
			fmt.Printf("%5d %-17s %9s %9s %9s %5d/%-3d\n",
				snap.Seq, captured, "-", "-", "-", 0, snap.RouteCount)
			continue
		}
		fmt.Printf("%5d %-17s %9.1f %9.1f %9.1f %5d/%-3d\n",
			snap.Seq, captured,
			snap.AvgSpeedKMH, snap.MinSpeedKMH, snap.MaxSpeedKMH,
			snap.SampleCount, snap.RouteCount)
	}
	fmt.Println()

	if page.Meta.NextCursor != nil {
		fmt.Printf("More snapshots available: --cursor %s\n", *page.Meta.NextCursor)
	}
	return nil
}

func showSnapshot(ctx context.Context, st *stores, areaID string, seq int) error {
	snap, err := st.service.Snapshot(ctx, areaID, seq)
	if err != nil {
		return renderAreaError(err)
	}

	fmt.Printf("\nSnapshot:   %d of %s\n", snap.Seq, snap.AreaID)
	fmt.Printf("Captured:   %s\n", snap.CapturedAt.Time().Format("2006-01-02 15:04:05"))
	fmt.Printf("Speeds:     %s\n", describeSpeeds(snap))
	fmt.Println()

	if len(snap.Samples) == 0 {
		return nil
	}

	fmt.Printf("%-10s %9s %9s %10s  %s\n", "ROUTE", "KM/H", "SECONDS", "METERS", "OK")
	fmt.Println("──────────────────────────────────────────────────")
	for _, rs := range snap.Samples {
		if !rs.Available {
			fmt.Printf("%-10s %9s %9s %10.0f  %s\n",
				rs.RouteID, "-", "-", rs.DistanceMeters,
				color.New(color.FgRed).Sprint("✗"))
			continue
		}
		fmt.Printf("%-10s %9.1f %9.0f %10.0f  %s\n",
			rs.RouteID, rs.SpeedKMH, rs.TravelTimeSeconds, rs.DistanceMeters,
			color.New(color.FgHiGreen).Sprint("✓"))
	}
	fmt.Println()

	return nil
}
