// cmd/assessctl/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/config"
	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/dangerclosesec/assessly/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	cfg     *config.Config
	timeout time.Duration
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "assessctl",
	Short: "Operator tooling for the assessly directory",
	Long:  `assessctl applies schema migrations, provisions organizations and users, and runs the manager assignment sweep.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Overload(); err != nil {
			log.Println("Error loading .env file, skipping")
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg = config.Load()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Minute, "Maximum time a command may run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func openDatabase() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// newAdminService wires the admin operations without a principal cache.
// Running API instances learn about changes through the principal_changes
// notifications fired by the database.
func newAdminService(db *gorm.DB) *service.AdminService {
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	hasher := auth.NewPasswordHasher()

	principals := service.NewPrincipalCache(nil, userRepo, membershipRepo, service.PrincipalCacheConfig{})
	verifier := service.NewCredentialVerifier(userRepo, orgRepo, membershipRepo, hasher)
	return service.NewAdminService(
		repository.NewTransactor(db),
		userRepo,
		orgRepo,
		teamRepo,
		membershipRepo,
		repository.NewAssessmentRepository(db),
		verifier,
		hasher,
		principals,
	)
}
