package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ecogrid-engine/internal/adapter/api"
	"github.com/couchcryptid/ecogrid-engine/internal/cart"
	"github.com/couchcryptid/ecogrid-engine/internal/config"
	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/game"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

const tabPadding = 2

type rootOptions struct {
	username string
	output   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "ecogridctl",
		Short:        "Inspect EcoGrid locations, carts and simulations",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("unknown output format %q (want table or json)", opts.output)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.username, "user", "u", "", "player username (default $GAME_USERNAME)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")

	root.AddCommand(locationsCmd(opts))
	root.AddCommand(inspectCmd(opts))
	root.AddCommand(buildingsCmd(opts))
	root.AddCommand(cartCmd(opts))
	root.AddCommand(simulateCmd(opts))

	return root
}

// newSession wires a Session against the configured backend. Metrics are not
// registered for one-shot commands.
func newSession(cmd *cobra.Command, opts *rootOptions, needUser bool) (*game.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.username != "" {
		cfg.Username = opts.username
	}
	if needUser {
		if err := cfg.RequireUsername(); err != nil {
			return nil, fmt.Errorf("%w (or pass --user)", err)
		}
	}

	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel, "text")
	client := api.NewClient(cfg.APIBaseURL, cfg.APISessionID, cfg.APITimeout, logger, nil)

	buildings := domain.DefaultBuildingCatalog()
	if cfg.CatalogPath != "" {
		f, err := os.Open(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("open building catalog: %w", err)
		}
		defer f.Close()
		if buildings, err = domain.LoadBuildingCatalog(f); err != nil {
			return nil, err
		}
	}

	return game.NewSession(game.Options{
		Username:       cfg.Username,
		StartingBudget: cfg.StartingBudget,
		ScalingFactor:  cfg.ScalingFactor,
		Locations:      client,
		Enricher:       domain.NewEnricher(client, domain.NewRandomScorer(cfg.ScorerSeed), logger),
		Ledger:         cart.NewLedger(client, logger, nil),
		Simulation:     client,
		Buildings:      buildings,
		Normalizer:     domain.NewNormalizer(cfg.MissingPolicy),
		Logger:         logger,
	}), nil
}

func locationsCmd(opts *rootOptions) *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List the normalized location catalog",
		Example: `  # Every known site
  ecogridctl locations

  # Only sites that can be bought
  ecogridctl locations --origin potential`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, opts, false)
			if err != nil {
				return err
			}
			report, err := s.LoadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			existing, potential := s.Catalog()
			var locs []domain.Location
			switch domain.Origin(origin) {
			case "":
				locs = append(existing, potential...)
			case domain.OriginExisting:
				locs = existing
			case domain.OriginPotential:
				locs = potential
			default:
				return fmt.Errorf("unknown origin %q", origin)
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), locs)
			}
			if report.AnyDegraded() {
				cmd.PrintErrln("warning: backend unavailable for part of the catalog, showing fallback locations")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "ID\tORIGIN\tNAME\tLATITUDE\tLONGITUDE")
			for _, l := range locs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\n", l.ID, l.Origin, orDash(l.Name), l.Latitude, l.Longitude)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&origin, "origin", "", "filter by origin: existing or potential")
	return cmd
}

func inspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [location-id]",
		Short: "Enrich one location and show its derived metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts, false)
			if err != nil {
				return err
			}
			if _, err := s.LoadCatalog(cmd.Context()); err != nil {
				return err
			}

			loc, err := s.Select(cmd.Context(), args[0])
			if err != nil && !errors.Is(err, domain.ErrEnrichmentDegraded) {
				return err
			}
			if err != nil {
				cmd.PrintErrln("warning: could not load full location details, showing fallback data")
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), loc)
			}
			e := loc.Enrichment
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintf(w, "Name:\t%s\n", orDash(loc.Name))
			fmt.Fprintf(w, "Coordinates:\t%.4f, %.4f\n", loc.Latitude, loc.Longitude)
			fmt.Fprintf(w, "Scores:\tclimate %d, renewable %d, grid %d, risk %d\n", e.Climate, e.Renewable, e.Grid, e.Risk)
			fmt.Fprintf(w, "Location score:\t%.2f\n", domain.LocationScore(loc))
			fmt.Fprintf(w, "Land cost:\t%s\n", domain.FormatCurrency(e.LandCost))
			fmt.Fprintf(w, "Electricity:\t%s\n", e.ElectricityCost)
			fmt.Fprintf(w, "Connectivity:\t%s\n", e.Connectivity)
			fmt.Fprintf(w, "Water:\t%s\n", e.WaterAvailability)
			fmt.Fprintf(w, "Tax incentives:\t%s\n", e.TaxIncentives)
			fmt.Fprintf(w, "Zone:\t%s\n", e.ZoneType)
			fmt.Fprintf(w, "Description:\t%s\n", e.Description)
			return w.Flush()
		},
	}
}

func buildingsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buildings",
		Short: "List the building options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, opts, false)
			if err != nil {
				return err
			}
			options := s.Buildings().Options()

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), options)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOST\tEFFICIENCY\tCAPACITY\tCARBON (t/day)")
			for _, b := range options {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%d\t%.1f\n",
					b.ID, b.Name, domain.FormatCurrency(b.Cost), b.EnergyEfficiency, b.Capacity, b.CarbonImpact)
			}
			return w.Flush()
		},
	}
}

func cartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the player's cart and carbon footprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, opts, true)
			if err != nil {
				return err
			}
			snap := s.RefreshCart(cmd.Context())

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			if snap.Degraded {
				cmd.PrintErrln("warning: cart could not be loaded")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tLAND PRICE\tELECTRICITY\tNOTES")
			for i, e := range snap.Entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, e.Name, e.LandPrice, e.Electricity, e.Notes)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			footprint := strconv.FormatFloat(snap.CarbonFootprint, 'f', 2, 64)
			if snap.FootprintDegraded {
				footprint = "unavailable"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nCarbon footprint: %s\n", footprint)
			return nil
		},
	}
}

func simulateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run the climate simulation and print the projected difference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, opts, true)
			if err != nil {
				return err
			}
			series, err := s.Simulate(cmd.Context())
			if err != nil {
				return err
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), series)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintf(w, "YEAR\tWITH (°C)\tWITHOUT (°C)\t%s\n", series.DifferenceLabel)
			for i, year := range series.Labels {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\n",
					year, series.WithDataCenters[i], series.WithoutDataCenters[i], series.Difference[i])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTime to end: %d years, data centers removed after: %d years\n",
				series.TotalTimeToEnd, series.TimeDatacentersRemoved)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
