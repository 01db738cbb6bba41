package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"twister-backend/internal/db"
	"twister-backend/internal/repository"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Connect, migrate the schema and report how many leaves are stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if err := db.InitDB(cfg.Database); err != nil {
			return err
		}
		defer db.Close()

		var current string
		if err := db.DB.WithContext(cmd.Context()).Raw("SELECT current_database()").Scan(&current).Error; err != nil {
			return fmt.Errorf("failed to query database name: %w", err)
		}

		network := globalFlags.Network
		if network == "" {
			network = cfg.Blockchain.DefaultNetwork
		}
		leaves, err := repository.NewLeafRepository(db.DB, network).Count(cmd.Context())
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"database": current,
			"network":  network,
			"leaves":   leaves,
		}).Info("[DB] schema up to date")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}
