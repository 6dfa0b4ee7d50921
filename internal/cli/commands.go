package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/resonance/internal/engine"
	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

var (
	feelLabel       string
	feelIntensity   string
	feelPredecessor string
	feelTags        []string

	traitRefresh bool
	traitHistory int

	sparkCount  int
	sparkWeight string
	sparkScope  string
)

var feelCmd = &cobra.Command{
	Use:   "feel <text>",
	Short: "Store a feeling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		a.notifyServer()

		res, err := a.engine.Ingest(cmd.Context(), engine.IngestRequest{
			Text:          args[0],
			Label:         feelLabel,
			Intensity:     types.Intensity(feelIntensity),
			PredecessorID: feelPredecessor,
			Tags:          feelTags,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run one decay cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		a.notifyServer()

		res, err := a.engine.Decay(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "decayed %d, cooled %d\n", res.Decayed, res.Cooled)
		return nil
	},
}

var traitCmd = &cobra.Command{
	Use:   "trait",
	Short: "Show the current trait snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		a.notifyServer()

		if traitHistory > 0 {
			history, err := a.engine.TraitHistory(cmd.Context(), traitHistory)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), history)
		}

		var snap *types.TraitSnapshot
		if traitRefresh {
			snap, err = a.engine.RefreshTrait(cmd.Context())
		} else {
			snap, err = a.engine.CurrentTrait(cmd.Context())
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no trait snapshot yet; run with --refresh")
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (confidence %d%%)\n", snap.Code, snap.Confidence)
		return nil
	},
}

var sparkCmd = &cobra.Command{
	Use:   "spark",
	Short: "Sample past feelings for reflection",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.engine.Spark(cmd.Context(), engine.SparkRequest{
			Count:  sparkCount,
			Weight: types.Weight(sparkWeight),
			Scope:  types.Scope(sparkScope),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <file.yaml>",
	Short: "Apply emotion calibrations from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.applyCalibration(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "calibrated %d emotions\n", n)
		return nil
	},
}

func init() {
	feelCmd.Flags().StringVarP(&feelLabel, "label", "l", types.NeutralLabel, "emotion label")
	feelCmd.Flags().StringVarP(&feelIntensity, "intensity", "i", "", "intensity (whisper, present, strong, overwhelming)")
	feelCmd.Flags().StringVar(&feelPredecessor, "after", "", "id of the feeling that triggered this one")
	feelCmd.Flags().StringSliceVarP(&feelTags, "tag", "t", nil, "extra tag (repeatable)")

	traitCmd.Flags().BoolVar(&traitRefresh, "refresh", false, "recompute the trait from recorded signals")
	traitCmd.Flags().IntVar(&traitHistory, "history", 0, "print the N most recent snapshots instead")

	sparkCmd.Flags().IntVarP(&sparkCount, "count", "n", engine.DefaultSparkCount, "number of feelings to sample")
	sparkCmd.Flags().StringVar(&sparkWeight, "weight", "", "only sample this weight (heavy, medium, light)")
	sparkCmd.Flags().StringVar(&sparkScope, "scope", "", "only sample this scope (all, feelings, facts)")
}
