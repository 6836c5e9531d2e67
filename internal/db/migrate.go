/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Account{},
		&models.User{},
		&models.APIKey{},
		&models.AuditLog{},

		&models.Customer{},
		&models.Technician{},
		&models.Job{},
		&models.Invoice{},
		&models.Lead{},

		&models.WebhookTarget{},
		&models.WebhookLog{},
		&models.Notification{},
	); err != nil {
		return err
	}

	if err := applyPostgresBookingOverlapGuard(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresBookingOverlapGuard installs a trigger that rejects a job
// write whose technician window overlaps another job for the same
// technician. The conflict detector checks first under an advisory lock;
// the trigger is the store-level backstop that turns a missed race into a
// rejected write instead of a silent double-booking.
func applyPostgresBookingOverlapGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
CREATE OR REPLACE FUNCTION prevent_technician_job_overlap()
RETURNS trigger
LANGUAGE plpgsql
AS $$
BEGIN
  IF NEW.technician_id IS NULL OR NEW.start_at IS NULL OR NEW.end_at IS NULL
     OR NEW.status = 'cancelled' THEN
    RETURN NEW;
  END IF;

  IF NEW.end_at <= NEW.start_at THEN
    RAISE EXCEPTION 'job end must be after start'
      USING ERRCODE = '23514';
  END IF;

  IF EXISTS (
    SELECT 1
    FROM jobs j
    WHERE j.account_id = NEW.account_id
      AND j.technician_id = NEW.technician_id
      AND j.id <> NEW.id
      AND j.start_at IS NOT NULL
      AND j.end_at IS NOT NULL
      AND j.status <> 'cancelled'
      AND tstzrange(j.start_at, j.end_at, '[)') && tstzrange(NEW.start_at, NEW.end_at, '[)')
  ) THEN
    RAISE EXCEPTION 'overlapping booking for technician %', NEW.technician_id
      USING ERRCODE = '23514';
  END IF;

  RETURN NEW;
END;
$$;

DROP TRIGGER IF EXISTS trg_prevent_technician_job_overlap ON jobs;

CREATE TRIGGER trg_prevent_technician_job_overlap
BEFORE INSERT OR UPDATE OF account_id, technician_id, start_at, end_at, status
ON jobs
FOR EACH ROW
EXECUTE FUNCTION prevent_technician_job_overlap();
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres booking overlap guard: %w", err)
	}

	return nil
}
