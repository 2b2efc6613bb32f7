package main

import (
	"fmt"
	"log/slog"

	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/dangerclosesec/assessly/internal/service"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Find teams whose manager no longer holds the MANAGER role",
	Long: `Scan manager assignments once. In report mode stale assignments are logged
and audited; in retract mode the manager is removed from the team.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		modeFlag, _ := cmd.Flags().GetString("mode")
		if modeFlag == "" {
			modeFlag = cfg.Sweep.Mode
		}
		mode, err := service.ParseSweepMode(modeFlag)
		if err != nil {
			return err
		}
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if batchSize == 0 {
			batchSize = cfg.Sweep.BatchSize
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}

		auditService := service.NewAuthzAuditLogService(repository.NewAuthzAuditLogRepository(db))
		sweeper := service.NewManagerAssignmentSweeper(repository.NewTeamRepository(db), auditService, 0, mode, slog.Default())
		sweeper.SetBatchSize(batchSize)

		result, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("stale: %d retracted: %d failed: %d\n", result.Stale, result.Retracted, result.Failed)
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringP("mode", "m", "", "report or retract (defaults to SWEEP_MODE)")
	sweepCmd.Flags().IntP("batch-size", "b", 0, "Teams fetched per query (defaults to SWEEP_BATCH_SIZE)")
	rootCmd.AddCommand(sweepCmd)
}
