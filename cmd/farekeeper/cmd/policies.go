package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/farekeeper/internal/fare"
	"github.com/solatis/farekeeper/internal/types"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Manage saved fare policies",
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved policies",
	RunE:  runPoliciesList,
}

var policiesSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Append a policy to the saved collection",
	RunE:  runPoliciesSave,
}

var policiesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove every saved policy with the given name",
	RunE:  runPoliciesDelete,
}

func init() {
	rootCmd.AddCommand(policiesCmd)
	policiesCmd.AddCommand(policiesListCmd, policiesSaveCmd, policiesDeleteCmd)

	policiesListCmd.Flags().String("format", "table", "output format (table, json)")

	policiesSaveCmd.Flags().String("policy", "", "policy JSON file (- for stdin)")
	policiesSaveCmd.Flags().String("name", "", "policy name (default derived from city, vehicle class and zone)")
	policiesSaveCmd.MarkFlagRequired("policy")

	policiesDeleteCmd.Flags().String("name", "", "policy name")
	policiesDeleteCmd.MarkFlagRequired("name")
}

func runPoliciesList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, _, policies, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer policies.Close()

	ctx, cancel := withStoreTimeout(cmd.Context(), cfg)
	defer cancel()

	c, err := policies.Load(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return writeJSON(out, c)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCITY\tVEHICLE\tZONE\tFLAT FARE\tSAVED AT")
		for _, p := range c {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.Name, p.Policy.City, p.Policy.VehicleClass, p.Policy.Zone,
				num(p.Policy.FlatFare()), p.SavedAt.UTC().Format(time.RFC3339))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (expected table or json)", format)
	}
}

func runPoliciesSave(cmd *cobra.Command, args []string) error {
	policyFile, _ := cmd.Flags().GetString("policy")
	name, _ := cmd.Flags().GetString("name")

	policy, err := readPolicyFile(policyFile)
	if err != nil {
		return err
	}
	if name == "" {
		name = fare.DefaultPolicyName(policy)
	}

	cfg, logger, policies, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer policies.Close()

	ctx, cancel := withStoreTimeout(cmd.Context(), cfg)
	defer cancel()

	c, err := policies.Load(ctx)
	if err != nil {
		return err
	}
	if _, exists := c.Find(name); exists {
		logger.Warn("saving duplicate policy name", "name", name)
	}

	entry := types.SavedPolicy{Name: name, Policy: policy, SavedAt: time.Now().UTC()}
	if err := policies.Save(ctx, c.Append(entry)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d policies)\n", name, len(c)+1)
	return nil
}

func runPoliciesDelete(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")

	cfg, _, policies, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer policies.Close()

	ctx, cancel := withStoreTimeout(cmd.Context(), cfg)
	defer cancel()

	c, err := policies.Load(ctx)
	if err != nil {
		return err
	}
	remaining := c.Without(name)
	if len(remaining) == len(c) {
		return fmt.Errorf("%w: %q", types.ErrPolicyNotFound, name)
	}
	if err := policies.Save(ctx, remaining); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s\n", len(c)-len(remaining), name)
	return nil
}
