package main

import (
	"fmt"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/datastore"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/validation"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			db, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = datastore.Close(db) }()

			fmt.Fprintf(cmd.OutOrStdout(), "database schema is up to date (%s)\n", a.settings.Database.Driver)
			return nil
		},
	}
}

func newSeedRulesCommand(a *app) *cobra.Command {
	var institutionID, lang string
	cmd := &cobra.Command{
		Use:   "seed-rules",
		Short: "Create the default alert rules of an institution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			if lang == "" {
				lang = a.settings.Alerting.Language
			}
			db, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = datastore.Close(db) }()

			store := alerting.NewRuleStore(repository.NewAlertRuleRepository(db), validation.New(), a.log)
			created, err := store.SeedDefaults(cmd.Context(), institutionID, alerting.MatchLanguage(lang))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d default alert rules for %s\n", created, institutionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&institutionID, "institution", "", "institution id")
	cmd.Flags().StringVar(&lang, "lang", "", "template language (ca, es, en)")
	_ = cmd.MarkFlagRequired("institution")
	return cmd
}

// openDatabase opens and migrates the configured database.
func (a *app) openDatabase() (*gorm.DB, error) {
	db, err := datastore.Open(a.settings.Database, a.log)
	if err != nil {
		return nil, err
	}
	if err := datastore.Migrate(db); err != nil {
		_ = datastore.Close(db)
		return nil, err
	}
	return db, nil
}
