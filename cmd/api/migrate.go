package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		st, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		st.Close()

		log.Info("schema applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}
