package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"churn-predict-api/pkg/services"

	"github.com/spf13/cobra"
)

var asJSON bool

var inspectModelCmd = &cobra.Command{
	Use:   "inspect-model",
	Short: "Print the model artifact's metadata and expected columns",
	RunE:  runInspectModel,
}

func init() {
	inspectModelCmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
}

func runInspectModel(cmd *cobra.Command, args []string) error {
	bundle, err := services.NewModelProvider(cfg.ModelPath, cfg.PreprocessorPath, nil).Get()
	if err != nil {
		return err
	}
	info := bundle.Info()

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(w, "Model:        %s %s (%s)\n", info.Name, info.Version, info.Type)
	if info.TrainedAt != "" {
		fmt.Fprintf(w, "Trained at:   %s\n", info.TrainedAt)
	}
	fmt.Fprintf(w, "Labels:       %s\n", strings.Join(info.ClassLabels, " / "))
	fmt.Fprintf(w, "Threshold:    %.2f\n", info.Threshold)
	fmt.Fprintf(w, "Preprocessor: %t\n", info.HasPreprocessor)
	fmt.Fprintf(w, "Columns (%d):\n", len(info.Columns))
	for i, c := range info.Columns {
		fmt.Fprintf(w, "  %3d  %s\n", i, c)
	}
	return nil
}
