package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"emotion-cam-go/internal/core/processor"
	"emotion-cam-go/internal/integrations/opencv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var analyzeOpts struct {
	detector string
	annotate string // Ausgabeverzeichnis für annotierte Bilder
	workers  int
	asJSON   bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image...>",
	Short: "Detect faces and emotions in still images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ocv := opencv.NewService(cfg.Detectors, 1)
		manager, name, err := buildManager(cmd.Context(), cfg, ocv, analyzeOpts.detector)
		if err != nil {
			return err
		}
		defer manager.Close()

		if analyzeOpts.annotate != "" {
			if err := os.MkdirAll(analyzeOpts.annotate, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		pool := processor.NewWorkerPool(processor.NewImageAnalyzer(manager), analyzeOpts.workers)
		defer pool.Shutdown()

		type outcome struct {
			Path     string              `json:"path"`
			Analysis *processor.Analysis `json:"analysis,omitempty"`
			Error    string              `json:"error,omitempty"`
		}
		results := make([]outcome, len(args))

		var wg sync.WaitGroup
		for i, path := range args {
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				results[i].Path = path

				data, err := os.ReadFile(path)
				if err != nil {
					results[i].Error = err.Error()
					return
				}
				analysis, err := pool.ProcessImage(cmd.Context(), data, name, analyzeOpts.annotate != "")
				if err != nil {
					results[i].Error = err.Error()
					return
				}
				results[i].Analysis = analysis

				if analyzeOpts.annotate != "" {
					base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
					out := filepath.Join(analyzeOpts.annotate, base+"_annotated.jpg")
					if err := os.WriteFile(out, analysis.Annotated, 0644); err != nil {
						log.Warnf("Failed to write %s: %v", out, err)
					}
				}
			}(i, path)
		}
		wg.Wait()

		if analyzeOpts.asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
				fmt.Printf("%s: error: %s\n", r.Path, r.Error)
				continue
			}
			res := r.Analysis.Result
			fmt.Printf("%s: %s (%.2f%%), %d face(s), detector %s\n",
				r.Path, res.Emotion, res.Confidence*100, res.FaceCount(), r.Analysis.Detector)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.detector, "detector", "d", "", "Detector name (default: configured or first available)")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.annotate, "annotate", "a", "", "Write annotated copies into this directory")
	analyzeCmd.Flags().IntVarP(&analyzeOpts.workers, "workers", "w", 0, "Number of analysis workers (0 = auto)")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.asJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
