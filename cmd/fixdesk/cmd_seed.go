/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldworks/fixdesk/internal/db"
	"github.com/fieldworks/fixdesk/internal/models"
)

var (
	seedAccountName   string
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create an account with an admin user and a sample technician",
	Long: `Seed an empty database with a working setup:

- An account
- An admin user for it
- One technician on the default Mon-Fri 09:00-17:00 roster

Examples:
  fixdesk seed --account "Hartman Appliance Repair" --email admin@example.com --password changeme
`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAccountName, "account", "Demo Repair Co", "Account name")
	seedCmd.Flags().StringVar(&seedAdminEmail, "email", "admin@example.com", "Admin user email")
	seedCmd.Flags().StringVar(&seedAdminPassword, "password", "", "Admin user password (required)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if seedAdminPassword == "" {
		return fmt.Errorf("--password is required")
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return err
	}

	var existing int64
	if err := database.Model(&models.Account{}).
		Where("name = ?", seedAccountName).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("account %q already exists", seedAccountName)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(seedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	account := models.Account{
		ID:       uuid.NewString(),
		Name:     seedAccountName,
		Timezone: "UTC",
	}
	admin := models.User{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Email:     seedAdminEmail,
		Password:  string(hashed),
		Role:      models.RoleAdmin,
	}
	tech := models.Technician{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		Name:         "Sam",
		Active:       true,
		WeeklyRoster: models.DefaultWeeklyRoster(),
	}

	if err := database.Create(&account).Error; err != nil {
		return err
	}
	if err := database.Create(&admin).Error; err != nil {
		return err
	}
	if err := database.Create(&tech).Error; err != nil {
		return err
	}

	logger.Info().
		Str("account_id", account.ID).
		Str("admin", admin.Email).
		Str("technician", tech.Name).
		Msg("seed complete")

	fmt.Printf("account: %s\nadmin:   %s\n", account.ID, admin.Email)
	return nil
}
