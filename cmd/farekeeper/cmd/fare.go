package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/farekeeper/internal/fare"
	"github.com/solatis/farekeeper/internal/types"
)

var fareCmd = &cobra.Command{
	Use:   "fare",
	Short: "Compute the fare for one distance",
	RunE:  runFare,
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Tabulate fares over a distance range",
	RunE:  runSeries,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two saved policies side by side",
	RunE:  runCompare,
}

func init() {
	rootCmd.AddCommand(fareCmd, seriesCmd, compareCmd)

	fareCmd.Flags().String("policy", "", "policy JSON file (- for stdin)")
	fareCmd.Flags().String("name", "", "saved policy name")
	fareCmd.Flags().Float64("distance", 0, "trip distance")
	fareCmd.Flags().String("format", "table", "output format (table, json)")
	fareCmd.MarkFlagRequired("distance")

	seriesCmd.Flags().String("policy", "", "policy JSON file (- for stdin)")
	seriesCmd.Flags().String("name", "", "saved policy name")
	seriesCmd.Flags().Float64("max", 0, "largest distance (default series.default_max)")
	seriesCmd.Flags().Float64("start", types.DefaultSeriesStart, "first grid distance")
	seriesCmd.Flags().Float64("step", types.DefaultSeriesStep, "grid spacing")
	seriesCmd.Flags().String("format", "table", "output format (table, json, csv)")

	compareCmd.Flags().String("a", "", "first saved policy name")
	compareCmd.Flags().String("b", "", "second saved policy name")
	compareCmd.Flags().String("format", "table", "output format (table, json)")
	compareCmd.MarkFlagRequired("a")
	compareCmd.MarkFlagRequired("b")
}

func runFare(cmd *cobra.Command, args []string) error {
	policyFile, _ := cmd.Flags().GetString("policy")
	name, _ := cmd.Flags().GetString("name")
	distance, _ := cmd.Flags().GetFloat64("distance")
	format, _ := cmd.Flags().GetString("format")

	policy, err := resolvePolicy(cmd.Context(), policyFile, name)
	if err != nil {
		return err
	}

	total, err := fare.ComputeFare(distance, policy)
	if err != nil {
		return err
	}
	result := struct {
		Distance float64 `json:"distance"`
		Fare     float64 `json:"fare"`
		PeakFare float64 `json:"peakFare"`
	}{distance, fare.Round2(total), fare.Round2(fare.PeakFare(total, policy))}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return writeJSON(out, result)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "DISTANCE\tFARE\tPEAK FARE\n")
		fmt.Fprintf(w, "%s\t%s\t%s\n", num(result.Distance), num(result.Fare), num(result.PeakFare))
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (expected table or json)", format)
	}
}

func runSeries(cmd *cobra.Command, args []string) error {
	policyFile, _ := cmd.Flags().GetString("policy")
	name, _ := cmd.Flags().GetString("name")
	maxDistance, _ := cmd.Flags().GetFloat64("max")
	start, _ := cmd.Flags().GetFloat64("start")
	step, _ := cmd.Flags().GetFloat64("step")
	format, _ := cmd.Flags().GetString("format")

	if !cmd.Flags().Changed("max") {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		maxDistance = cfg.Series.DefaultMax
	}

	policy, err := resolvePolicy(cmd.Context(), policyFile, name)
	if err != nil {
		return err
	}

	samples, err := fare.ComputeSeries(policy, maxDistance, fare.WithStart(start), fare.WithStep(step))
	if err != nil {
		return err
	}

	return writeSeries(cmd.OutOrStdout(), samples, format)
}

func writeSeries(out io.Writer, samples []types.FareSample, format string) error {
	header := []string{"distance", "fare", "farePerUnitDistance", "peakFare", "peakFarePerUnitDistance"}
	row := func(s types.FareSample) []string {
		return []string{num(s.Distance), num(s.Fare), num(s.FarePerUnitDistance), num(s.PeakFare), num(s.PeakFarePerUnitDistance)}
	}

	switch format {
	case "json":
		return writeJSON(out, samples)
	case "csv":
		w := csv.NewWriter(out)
		if err := w.Write(header); err != nil {
			return err
		}
		for _, s := range samples {
			if err := w.Write(row(s)); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "DISTANCE\tFARE\tFARE/UNIT\tPEAK\tPEAK/UNIT\t")
		for _, s := range samples {
			r := row(s)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", r[0], r[1], r[2], r[3], r[4])
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (expected table, json or csv)", format)
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	nameA, _ := cmd.Flags().GetString("a")
	nameB, _ := cmd.Flags().GetString("b")
	format, _ := cmd.Flags().GetString("format")

	a, b, err := loadPair(cmd.Context(), nameA, nameB)
	if err != nil {
		return err
	}

	rows, err := fare.Compare(a, b, fare.DefaultCompareDistances())
	if err != nil {
		return err
	}
	differences := fare.Diff(a, b)

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		if differences == nil {
			differences = []fare.FieldDifference{}
		}
		return writeJSON(out, struct {
			Rows        []fare.ComparisonRow   `json:"rows"`
			Differences []fare.FieldDifference `json:"differences"`
		}{rows, differences})
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(w, "DISTANCE\t%s\t%s\tDIFF\t%s/UNIT\t%s/UNIT\tDIFF/UNIT\t\n", nameA, nameB, nameA, nameB)
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				num(r.Distance), num(r.FareA), num(r.FareB), num(r.Difference),
				num(r.FarePerUnitA), num(r.FarePerUnitB), num(r.FarePerUnitDifference))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, d := range differences {
			fmt.Fprintf(out, "differs: %s (%v -> %v)\n", d.Field, d.A, d.B)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (expected table or json)", format)
	}
}

// loadPair reads both named policies with a single store load.
func loadPair(ctx context.Context, nameA, nameB string) (types.FarePolicy, types.FarePolicy, error) {
	cfg, _, policies, err := setup(ctx)
	if err != nil {
		return types.FarePolicy{}, types.FarePolicy{}, err
	}
	defer policies.Close()

	ctx, cancel := withStoreTimeout(ctx, cfg)
	defer cancel()

	c, err := policies.Load(ctx)
	if err != nil {
		return types.FarePolicy{}, types.FarePolicy{}, err
	}
	a, ok := c.Find(nameA)
	if !ok {
		return types.FarePolicy{}, types.FarePolicy{}, fmt.Errorf("%w: %q", types.ErrPolicyNotFound, nameA)
	}
	b, ok := c.Find(nameB)
	if !ok {
		return types.FarePolicy{}, types.FarePolicy{}, fmt.Errorf("%w: %q", types.ErrPolicyNotFound, nameB)
	}
	return a.Policy, b.Policy, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
