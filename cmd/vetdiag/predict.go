package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skufu/vetdiag/internal/model"
)

var (
	predictModelDir     string
	predictPipeline     string
	predictEncoder      string
	predictSpecies      string
	predictInferenceURL string
	predictJSON         bool
)

func init() {
	predictCmd.Flags().StringVar(&predictModelDir, "model-dir", "model_assets", "directory holding the exported model")
	predictCmd.Flags().StringVar(&predictPipeline, "pipeline", "ai_diagnosa_pipeline.json", "pipeline artifact file name")
	predictCmd.Flags().StringVar(&predictEncoder, "encoder", "label_encoder.json", "label encoder artifact file name")
	predictCmd.Flags().StringVar(&predictSpecies, "species", "", "animal species (hewan)")
	predictCmd.Flags().StringVar(&predictInferenceURL, "inference-url", "", "use a remote inference server instead of local artifacts")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print the full prediction as JSON")
}

// predictCmd runs one prediction.
var predictCmd = &cobra.Command{
	Use:   "predict [symptoms...]",
	Short: "Predict a diagnosis from symptom text",
	Long: `Predict the diagnosis for a free-text symptom description.

Examples:
  vetdiag predict "nafsu makan turun, perut kembung"
  vetdiag predict --species sapi --json "diare berdarah"
  vetdiag predict --inference-url http://localhost:5000 "demam tinggi"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func loadClassifier() (model.Classifier, error) {
	if predictInferenceURL != "" {
		return model.NewRemote(predictInferenceURL, nil), nil
	}
	return model.LoadLocal(
		filepath.Join(predictModelDir, predictPipeline),
		filepath.Join(predictModelDir, predictEncoder),
	)
}

func runPredict(cmd *cobra.Command, args []string) error {
	classifier, err := loadClassifier()
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	in := model.Input{Symptoms: strings.Join(args, " "), Species: predictSpecies}
	pred, err := classifier.Predict(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if predictJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pred)
	}
	fmt.Fprintf(out, "%s (%.1f%%)\n", pred.Diagnosis, pred.Confidence*100)
	for _, alt := range pred.Alternatives {
		fmt.Fprintf(out, "  %s (%.1f%%)\n", alt.Diagnosis, alt.Confidence*100)
	}
	return nil
}
