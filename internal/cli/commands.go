package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/compositor"
	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/navigation"
	"satfusion-desktop/internal/viewer"
)

func paintCmd(opts *globalOptions) *cobra.Command {
	var (
		compositeID string
		selectID    string
		enable      []string
		disable     []string
		fusionIDs   []string
	)

	c := &cobra.Command{
		Use:   "paint",
		Short: "Compute the paint state for a set of layer toggles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer v.Stop(context.Background())

			if selectID != "" {
				if _, err := v.SelectSource(selectID); err != nil {
					return err
				}
			}
			for _, id := range enable {
				if _, err := v.ToggleSource(id, true); err != nil {
					return err
				}
			}
			for _, id := range disable {
				if _, err := v.ToggleSource(id, false); err != nil {
					return err
				}
			}
			if compositeID != "" {
				if _, err := v.SelectComposite(compositeID); err != nil {
					return err
				}
			}
			for _, id := range fusionIDs {
				if _, err := v.SetFusion(id, true); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), v.PaintState())
		},
	}

	c.Flags().StringVarP(&compositeID, "composite", "c", "", "Band composite id")
	c.Flags().StringVarP(&selectID, "source", "s", "", "Select a single base source")
	c.Flags().StringSliceVar(&enable, "enable", nil, "Source ids to enable")
	c.Flags().StringSliceVar(&disable, "disable", nil, "Source ids to disable")
	c.Flags().StringSliceVarP(&fusionIDs, "fusion", "f", nil, "Fusion option ids to enable")
	return c
}

func navigateCmd(opts *globalOptions) *cobra.Command {
	var (
		flight time.Duration
		settle time.Duration
	)

	c := &cobra.Command{
		Use:   "navigate <place | \"lat, lon\">",
		Short: "Fly to a place, search the catalog there and stream the events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events := newEventStream(cmd.OutOrStdout())
			v, err := opts.open(cmd, events, func(s *config.UserSettings) {
				if flight > 0 {
					s.FlightDurationMs = int(flight.Milliseconds())
				}
			})
			if err != nil {
				return err
			}
			defer v.Stop(context.Background())

			ctx := cmd.Context()
			if err := v.NavigateTo(ctx, navigation.Place(strings.Join(args, " "))); err != nil {
				return err
			}
			return waitForFootprints(ctx, events, settle)
		},
	}

	c.Flags().DurationVar(&flight, "flight", 0, "Flight duration (defaults to settings)")
	c.Flags().DurationVar(&settle, "settle", 5*time.Second, "How long to wait for catalog results after landing")
	return c
}

// waitForFootprints returns once footprints are published, or settle after
// landing if the search never produced any.
func waitForFootprints(ctx context.Context, events *eventStream, settle time.Duration) error {
	var settled <-chan time.Time
	for {
		select {
		case name := <-events.seen:
			switch name {
			case viewer.EventFootprintsUpdated:
				return nil
			case viewer.EventFlightLanded:
				settled = time.After(settle)
			}
		case <-settled:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func inspectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <lat> <lon>",
		Short: "Sample band values and spectral indices at a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parsePoint(args)
			if err != nil {
				return err
			}

			v, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer v.Stop(context.Background())
			return printJSON(cmd.OutOrStdout(), v.Inspect(cmd.Context(), lat, lon))
		},
	}
}

func whereCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "where <lat> <lon>",
		Short: "Name the place nearest to a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parsePoint(args)
			if err != nil {
				return err
			}
			v, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer v.Stop(context.Background())

			r, err := v.DescribePoint(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

func parsePoint(args []string) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q: %w", args[0], err)
	}
	lon, err = strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q: %w", args[1], err)
	}
	return lat, lon, nil
}

func healthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer v.Stop(context.Background())

			st := v.CheckConnection(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), st); err != nil {
				return err
			}
			if !st.Connected {
				return fmt.Errorf("backend %s", st.Status)
			}
			return nil
		},
	}
}

type askResult struct {
	Response backend.AgentResponse `json:"response"`
	Paint    compositor.PaintState `json:"paint"`
}

func askCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the fusion agent and apply its suggested layer changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer v.Stop(context.Background())

			resp := v.Ask(cmd.Context(), strings.Join(args, " "))
			return printJSON(cmd.OutOrStdout(), askResult{Response: resp, Paint: v.PaintState()})
		},
	}
}

func passesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "Print the current ground positions of tracked satellites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer v.Stop(context.Background())
			return printJSON(cmd.OutOrStdout(), v.LivePasses())
		},
	}
}
