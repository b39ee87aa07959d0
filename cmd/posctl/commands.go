package main

import (
	"errors"
	"fmt"

	"go-pos-api/internal/cache"
	"go-pos-api/internal/config"
	"go-pos-api/internal/repository"
	"go-pos-api/pkg/database"
	"go-pos-api/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	cfg *config.Config
	log *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.LogConfig{Level: cfg.LogLevel, Environment: cfg.AppEnv, ServiceName: "posctl"})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) openDB() (*gorm.DB, error) {
	db, err := database.Connect(e.cfg, e.log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := e.openDB()
			if err != nil {
				return err
			}
			if err := repository.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			e.log.Info("schema migrated", zap.Int("models", len(repository.Models())))
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var tenantName, email, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed privileges, roles and the owner account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := e.openDB()
			if err != nil {
				return err
			}
			if tenantName == "" {
				tenantName = e.cfg.SeedTenantName
			}
			if email == "" {
				email = e.cfg.SeedAdminEmail
			}
			if password == "" {
				password = e.cfg.SeedAdminPass
			}

			if err := repository.SeedAccessControl(db); err != nil {
				return fmt.Errorf("seed access control: %w", err)
			}
			created, err := repository.SeedOwner(db, tenantName, email, password)
			if err != nil {
				return fmt.Errorf("seed owner: %w", err)
			}
			if created {
				e.log.Info("owner account created", zap.String("email", email), zap.String("tenant", tenantName))
			} else {
				e.log.Info("owner account already exists", zap.String("email", email))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantName, "tenant", "", "store name for the owner (default SEED_TENANT_NAME)")
	cmd.Flags().StringVar(&email, "email", "", "owner email (default SEED_ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "owner password (default SEED_ADMIN_PASSWORD)")
	return cmd
}

func newResetPasswordCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for a user and end their sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < 6 {
				return errors.New("password must be at least 6 characters")
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := e.openDB()
			if err != nil {
				return err
			}

			users := repository.NewUserRepo(db)
			user, err := users.FindByEmail(email)
			if err != nil {
				return fmt.Errorf("user %s not found: %w", email, err)
			}
			if err := user.SetPassword(password); err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			if err := users.UpdatePassword(user.ID, user.Password); err != nil {
				return fmt.Errorf("update password: %w", err)
			}
			// outstanding tokens carry the old version and stop validating
			if err := users.UpdateTokenVersion(user.ID, uuid.NewString()); err != nil {
				return fmt.Errorf("rotate token version: %w", err)
			}
			e.log.Info("password reset", zap.String("email", email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the user")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the product cache",
	}

	var tenant string
	flush := &cobra.Command{
		Use:   "flush",
		Short: "Drop cached product data for one tenant or everything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if e.cfg.CacheDriver == "memory" {
				e.log.Info("memory cache lives inside the API process, nothing to flush")
				return nil
			}
			c, err := cache.Open(cmd.Context(), e.cfg, nil, e.log)
			if err != nil {
				return err
			}
			defer c.Close()

			if tenant != "" {
				tenantID, err := uuid.Parse(tenant)
				if err != nil {
					return fmt.Errorf("invalid --tenant: %w", err)
				}
				if err := c.InvalidateTenant(cmd.Context(), tenantID); err != nil {
					return err
				}
				e.log.Info("tenant cache flushed", zap.Stringer("tenant_id", tenantID))
				return nil
			}
			if err := c.Flush(cmd.Context()); err != nil {
				return err
			}
			e.log.Info("cache flushed", zap.String("driver", e.cfg.CacheDriver))
			return nil
		},
	}
	flush.Flags().StringVar(&tenant, "tenant", "", "limit the flush to one tenant id")
	cacheCmd.AddCommand(flush)
	return cacheCmd
}
