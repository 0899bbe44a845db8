package versions

import (
	"log"

	"gorm.io/gorm"
)

/*
 * The previous backend used sqlalchemy, which names indexes and constraints
 * differently than gorm. For simplicity these migrations drop the old
 * indexes/constraints and let gorm recreate them.
 */
func dropIndexes(model interface{}, txn *gorm.DB, indexes ...string) error {
	for _, idx := range indexes {
		if !txn.Migrator().HasIndex(model, idx) {
			continue
		}
		if err := txn.Migrator().DropIndex(model, idx); err != nil {
			return err
		}
	}
	return nil
}

func migrateReports(txn *gorm.DB) error {
	log.Println("migrating table 'reports'")

	type Report struct{}

	// The old schema called the shift column 'type' and the work category
	// column 'report_type'.
	if err := txn.Migrator().RenameColumn(&Report{}, "type", "shift"); err != nil {
		return err
	}
	if err := txn.Migrator().RenameColumn(&Report{}, "report_type", "work_category"); err != nil {
		return err
	}

	if err := dropIndexes(&Report{}, txn, "ix_reports_id", "ix_reports_date"); err != nil {
		return err
	}

	log.Println("table 'reports' migration complete")

	return nil
}

func migrateUsers(txn *gorm.DB) error {
	log.Println("migrating table 'users'")

	type User struct {
		Password []byte
	}

	// Admin password logins are new, old rows authenticate via telegram id.
	if err := txn.Migrator().AddColumn(&User{}, "Password"); err != nil {
		return err
	}

	if err := dropIndexes(&User{}, txn, "ix_users_id", "ix_users_telegram_id"); err != nil {
		return err
	}

	log.Println("table 'users' migration complete")

	return nil
}

func Migration_1_initial_migration(txn *gorm.DB) error {
	if err := migrateReports(txn); err != nil {
		return err
	}

	if err := migrateUsers(txn); err != nil {
		return err
	}

	return nil
}
