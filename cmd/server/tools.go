package main

import (
	"fmt"
	"log"

	"github.com/developia-II/slang-translator-backend/internal/config"
	"github.com/developia-II/slang-translator-backend/internal/matcher"
	"github.com/developia-II/slang-translator-backend/internal/services"
	"github.com/developia-II/slang-translator-backend/utils"
	"github.com/spf13/cobra"
)

var (
	seedDryRun   bool
	decayFactor  float64
	tokenRole    string
	tokenPremium bool
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Import lexicon entries from a YAML file",
	Long: `Import lexicon entries from a YAML file.

The merged lexicon is compiled before anything is written; a spelling claimed by
two entries aborts the import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := services.LoadSeedFile(args[0])
		if err != nil {
			return err
		}
		if seedDryRun {
			if _, err := matcher.BuildSnapshot(0, entries); err != nil {
				return err
			}
			fmt.Printf("%d entries OK\n", len(entries))
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := ctxOrBackground(cmd)
		rt, err := wire(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.lexicon.Import(ctx, entries)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d entries\n", n)
		return nil
	},
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Apply one round of momentum decay to the active lexicon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		factor := cfg.Policy.MomentumDecay
		if cmd.Flags().Changed("factor") {
			factor = decayFactor
		}
		if factor <= 0 || factor > 1 {
			return fmt.Errorf("factor must be within (0,1], got %v", factor)
		}

		ctx := ctxOrBackground(cmd)
		rt, err := wire(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.lexicon.DecayMomentum(ctx, factor)
		if err != nil {
			return err
		}
		fmt.Printf("decayed %d entries by %.3f\n", n, factor)
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Move submissions stuck in VALIDATING to PENDING_VOTE",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := ctxOrBackground(cmd)
		rt, err := wire(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.pipeline.RecoverStuck(ctx)
		if err != nil {
			return err
		}
		log.Printf("recover: moved %d submissions to PENDING_VOTE", n)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Mint an API token signed with JWT_SECRET",
	Long: `Mint an API token signed with JWT_SECRET.

Production tokens come from the account service. This is for operators and local
testing, e.g. an admin token for the review endpoints.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tok, err := utils.GenerateJWT(args[0], tokenRole, tokenPremium, cfg.JWTSecret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate the file and compile the index without writing")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "role claim (user or admin)")
	tokenCmd.Flags().BoolVar(&tokenPremium, "premium", false, "grant the premium claim")
	decayCmd.Flags().Float64Var(&decayFactor, "factor", 0.9, "multiplier applied to every active entry's momentum")
}
