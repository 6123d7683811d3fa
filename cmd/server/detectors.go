package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/db"
	"emotion-cam-go/internal/db/repository"
	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/opencv"
	"emotion-cam-go/internal/integrations/provider"
	"emotion-cam-go/internal/session"

	"github.com/spf13/cobra"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List all registered emotion detectors and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ocv := opencv.NewService(cfg.Detectors, 1)
		manager := provider.CreateManager(cmd.Context(), cfg, ocv)
		defer manager.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tAVAILABLE\tKIND\tACCURACY\tSPEED\tDESCRIPTION")
		for _, d := range manager.Descriptors() {
			fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%s\n",
				d.Name, d.Available, d.Capability, d.Info.Accuracy, d.Info.Speed, d.Info.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if def := manager.Default(); def != "" {
			fmt.Printf("\nDefault: %s\n", def)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectorsCmd)
}

// buildManager erstellt die Detektoren und wählt den konfigurierten oder
// angegebenen Detektor
func buildManager(ctx context.Context, cfg *config.Config, ocv *opencv.Service, name string) (*detector.Manager, string, error) {
	manager := provider.CreateManager(ctx, cfg, ocv)
	if manager.Len() == 0 {
		manager.Close()
		return nil, "", fmt.Errorf("no emotion detector available, check the model paths")
	}

	if name == "" {
		name = cfg.Detectors.Default
	}
	if name == "" || !manager.Has(name) {
		if name != "" && name != cfg.Detectors.Default {
			manager.Close()
			return nil, "", fmt.Errorf("detector %q is not available (available: %v)", name, manager.AvailableNames())
		}
		name = manager.Default()
	}
	return manager, name, nil
}

// openStore öffnet die Datenbank, wenn Sitzungen gespeichert werden sollen.
// Die zurückgegebene Funktion schließt die Verbindung.
func openStore(cfg *config.Config) (*repository.SQLiteRepository, session.Store, func(), error) {
	if !cfg.Session.Persist {
		return nil, nil, func() {}, nil
	}
	if err := db.Initialize(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := repository.NewSQLiteRepository(db.DB)
	return repo, repo, func() { db.Close() }, nil
}
