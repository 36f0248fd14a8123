package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements is executed in order at startup.  Every statement is
// idempotent (CREATE TABLE IF NOT EXISTS) so repeated boots are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS cruise_lines (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		external_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		divide_prices_by_1000 TINYINT(1) NOT NULL DEFAULT 0,
		active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_cruise_lines_external (external_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS ships (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		line_id BIGINT UNSIGNED NOT NULL,
		external_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_ships_line_external (line_id, external_id),
		CONSTRAINT fk_ships_line FOREIGN KEY (line_id) REFERENCES cruise_lines(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS ports (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		external_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		UNIQUE KEY uq_ports_external (external_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS regions (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		external_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		UNIQUE KEY uq_regions_external (external_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS cruises (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		file_code VARCHAR(64) NOT NULL,
		external_cruise_id BIGINT UNSIGNED NOT NULL,
		line_id BIGINT UNSIGNED NOT NULL,
		ship_id BIGINT UNSIGNED NOT NULL,
		title VARCHAR(512) NOT NULL DEFAULT '',
		sail_date DATE NOT NULL,
		duration_nights INT UNSIGNED NOT NULL DEFAULT 0,
		embark_port_id BIGINT UNSIGNED NULL,
		disembark_port_id BIGINT UNSIGNED NULL,
		price_interior DECIMAL(10,2) NULL,
		price_oceanview DECIMAL(10,2) NULL,
		price_balcony DECIMAL(10,2) NULL,
		price_suite DECIMAL(10,2) NULL,
		cheapest_price DECIMAL(10,2) NULL,
		currency CHAR(3) NOT NULL DEFAULT 'USD',
		needs_update TINYINT(1) NOT NULL DEFAULT 0,
		needs_update_at DATETIME NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_cruises_file_code (file_code),
		KEY idx_cruises_line_pending (line_id, needs_update),
		KEY idx_cruises_sail_date (sail_date),
		CONSTRAINT fk_cruises_line FOREIGN KEY (line_id) REFERENCES cruise_lines(id),
		CONSTRAINT fk_cruises_ship FOREIGN KEY (ship_id) REFERENCES ships(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS cruise_regions (
		cruise_id BIGINT UNSIGNED NOT NULL,
		region_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (cruise_id, region_id),
		CONSTRAINT fk_cr_cruise FOREIGN KEY (cruise_id) REFERENCES cruises(id),
		CONSTRAINT fk_cr_region FOREIGN KEY (region_id) REFERENCES regions(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS cruise_raw_documents (
		cruise_id BIGINT UNSIGNED PRIMARY KEY,
		doc MEDIUMTEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_raw_cruise FOREIGN KEY (cruise_id) REFERENCES cruises(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS webhook_events (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id CHAR(36) NOT NULL,
		line_external_id BIGINT UNSIGNED NOT NULL,
		line_id BIGINT UNSIGNED NULL,
		event_type VARCHAR(64) NOT NULL,
		status ENUM('received','processing','completed','failed') NOT NULL DEFAULT 'received',
		cruises_updated INT UNSIGNED NOT NULL DEFAULT 0,
		cruises_failed INT UNSIGNED NOT NULL DEFAULT 0,
		error_message TEXT NULL,
		received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME NULL,
		UNIQUE KEY uq_webhook_events_event_id (event_id),
		KEY idx_webhook_events_line_status (line_id, status)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS sync_locks (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		line_id BIGINT UNSIGNED NOT NULL,
		status ENUM('idle','processing') NOT NULL DEFAULT 'idle',
		holder CHAR(36) NULL,
		acquired_at DATETIME NULL,
		UNIQUE KEY uq_sync_locks_line (line_id),
		CONSTRAINT fk_sync_locks_line FOREIGN KEY (line_id) REFERENCES cruise_lines(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS price_snapshots (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		cruise_id BIGINT UNSIGNED NOT NULL,
		price_interior DECIMAL(10,2) NULL,
		price_oceanview DECIMAL(10,2) NULL,
		price_balcony DECIMAL(10,2) NULL,
		price_suite DECIMAL(10,2) NULL,
		change_interior_pct DECIMAL(8,2) NULL,
		change_oceanview_pct DECIMAL(8,2) NULL,
		change_balcony_pct DECIMAL(8,2) NULL,
		change_suite_pct DECIMAL(8,2) NULL,
		source ENUM('webhook','scheduled','reconcile') NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_snapshots_cruise (cruise_id, created_at),
		CONSTRAINT fk_snapshots_cruise FOREIGN KEY (cruise_id) REFERENCES cruises(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS price_trends (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		cruise_id BIGINT UNSIGNED NOT NULL,
		cabin VARCHAR(16) NOT NULL,
		period CHAR(7) NOT NULL,
		avg_price DECIMAL(10,2) NOT NULL,
		min_price DECIMAL(10,2) NOT NULL,
		max_price DECIMAL(10,2) NOT NULL,
		volatility DECIMAL(10,4) NOT NULL DEFAULT 0,
		samples INT UNSIGNED NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_trends (cruise_id, cabin, period),
		CONSTRAINT fk_trends_cruise FOREIGN KEY (cruise_id) REFERENCES cruises(id)
	) ENGINE=InnoDB`,
}

// EnsureSchema creates any missing tables.  It is called once at startup,
// before repositories are constructed.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
