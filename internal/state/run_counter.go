/*

This file manages the persistent global settlement run counter. The counter is
stored in the database to ensure continuity across restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stripfi/ysm/internal/types"
)

// ensureRunCounterTable creates the run_counter table if it doesn't exist
func ensureRunCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS run_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_run INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO run_counter (id, current_run)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create run_counter table: %w", err)
	}

	log.Debug().Msg("Ensured run_counter table exists")
	return nil
}

// GetCurrentRunNumber retrieves the current settlement run number.
func GetCurrentRunNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureRunCounterTable(); err != nil {
		return 0, err
	}

	query := `SELECT current_run FROM run_counter WHERE id = 1;`

	var currentRun int
	row := DB.QueryRow(query)
	err := row.Scan(&currentRun)

	if err != nil {
		if err == sql.ErrNoRows {
			// This should not happen due to the INSERT in ensureRunCounterTable
			log.Warn().Msg("No run counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current run number: %w", err)
	}

	log.Debug().Int("currentRun", currentRun).Msg("Retrieved current run number")
	return currentRun, nil
}

// IncrementRunNumber increments the run counter and returns the new value.
func IncrementRunNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureRunCounterTable(); err != nil {
		return 0, err
	}

	updateQuery := `
		UPDATE run_counter
		SET current_run = current_run + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_run;`

	var newRun int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&newRun)

	if err != nil {
		return 0, fmt.Errorf("failed to increment run number: %w", err)
	}

	log.Info().Int("newRun", newRun).Msg("Incremented run counter")
	return newRun, nil
}

// ResetRunNumber resets the run counter to a specific value (for testing/maintenance).
func ResetRunNumber(runNumber int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := ensureRunCounterTable(); err != nil {
		return err
	}

	if runNumber < 0 {
		return fmt.Errorf("run number cannot be negative: %d", runNumber)
	}

	updateQuery := `
		UPDATE run_counter
		SET current_run = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateQuery, runNumber)
	if err != nil {
		return fmt.Errorf("failed to reset run number to %d: %w", runNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting run number")
	}

	log.Warn().Int("runNumber", runNumber).Msg("Reset run counter")
	return nil
}

// SaveSettlementRun records one completed settlement daemon pass.
func SaveSettlementRun(run types.SettlementRun) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO settlement_runs (
			run_id, run_number, started_at, finished_at,
			series_settled, snapshots_written, success, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`

	_, err := DB.Exec(
		query,
		run.RunID, run.RunNumber, run.StartedAt, run.FinishedAt,
		run.SeriesSettled, run.SnapshotsWritten, run.Success, run.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to save settlement run: %w", err)
	}

	log.Info().
		Str("run_id", run.RunID).
		Int("run_number", run.RunNumber).
		Int("series_settled", run.SeriesSettled).
		Bool("success", run.Success).
		Msg("Settlement run saved")
	return nil
}

// GetRecentSettlementRuns retrieves recent settlement runs, newest first.
func GetRecentSettlementRuns(limit int) ([]types.SettlementRun, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT run_id, run_number, started_at, finished_at,
			series_settled, snapshots_written, success, message
		FROM settlement_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement runs: %w", err)
	}
	defer rows.Close()

	var runs []types.SettlementRun
	for rows.Next() {
		var run types.SettlementRun
		err := rows.Scan(
			&run.RunID, &run.RunNumber, &run.StartedAt, &run.FinishedAt,
			&run.SeriesSettled, &run.SnapshotsWritten, &run.Success, &run.Message,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan settlement run row")
			continue
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
