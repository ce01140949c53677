// AngelaMos | 2026
// migrate.go

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/accountd/internal/core"
	"github.com/carterperez-dev/accountd/internal/migrations"
	"github.com/carterperez-dev/accountd/internal/user"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			db, err := core.NewDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exit

			if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
				return err
			}

			logger.Info("migrations applied")
			return nil
		},
	}
}

func newCreateAdminCommand(opts *rootOptions) *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account unless the name is already taken",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			if name == "" {
				name = cfg.Admin.Name
			}
			if password == "" {
				password = cfg.Admin.Password
			}
			if name == "" || password == "" {
				return fmt.Errorf("create-admin: --name and --password are required")
			}

			hasher, err := core.NewPasswordHasher(cfg.Password)
			if err != nil {
				return err
			}

			db, err := core.NewDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exit

			svc := user.NewService(user.NewRepository(db.DB), hasher)
			u, created, err := svc.EnsureAdmin(cmd.Context(), name, password)
			if err != nil {
				return err
			}

			logger.Info("admin account ready", "user_id", u.ID, "name", u.Name, "created", created)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "admin user name (defaults to admin.name)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (defaults to admin.password)")
	return cmd
}
