// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stripfi/ysm/internal/types"
)

// SaveSeriesSnapshot persists one periodic series view.
func SaveSeriesSnapshot(s types.SeriesSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO series_snapshots (
			series_id, snapshot_timestamp, phase,
			mscale, maxscale, pt_supply, yt_supply,
			issuance_fees, target_balance, solvency_drift
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		string(s.SeriesID), s.Timestamp, s.Phase,
		s.Mscale.String(), s.Maxscale.String(), s.PTSupply.String(), s.YTSupply.String(),
		s.IssuanceFees.String(), s.TargetBalance.String(), s.SolvencyDrift.String(),
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save series snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("series_id", string(s.SeriesID)).
		Str("phase", s.Phase).
		Msg("Series snapshot saved")
	return snapshotID, nil
}

// SavePoolSnapshot persists one periodic pool view.
func SavePoolSnapshot(s types.PoolSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO pool_snapshots (
			snapshot_timestamp, total_underlying, total_base_lpt,
			last_ln_implied_rate, lp_supply, protocol_fees, implied_apy
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		s.Timestamp, s.TotalUnderlying.String(), s.TotalBaseLpt.String(),
		s.LastLnImpliedRate.String(), s.LpSupply.String(), s.ProtocolFees.String(), s.ImpliedAPY,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save pool snapshot: %w", err)
	}

	log.Debug().Int64("snapshot_id", snapshotID).Msg("Pool snapshot saved")
	return snapshotID, nil
}

// GetLatestSeriesSnapshot retrieves the most recent snapshot for one series.
func GetLatestSeriesSnapshot(seriesID types.SeriesID) (*types.SeriesSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT series_id, snapshot_timestamp, phase,
			mscale, maxscale, pt_supply, yt_supply,
			issuance_fees, target_balance, solvency_drift
		FROM series_snapshots
		WHERE series_id = $1
		ORDER BY snapshot_timestamp DESC
		LIMIT 1
	`

	var s types.SeriesSnapshot
	var id string
	var mscale, maxscale, ptSupply, ytSupply, fees, target, drift string

	err := DB.QueryRow(query, string(seriesID)).Scan(
		&id, &s.Timestamp, &s.Phase,
		&mscale, &maxscale, &ptSupply, &ytSupply,
		&fees, &target, &drift,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no snapshots found for series '%s'", seriesID)
		}
		return nil, fmt.Errorf("failed to query latest series snapshot: %w", err)
	}

	s.SeriesID = types.SeriesID(id)
	if s.Mscale, err = scanBigInt(mscale); err != nil {
		return nil, err
	}
	if s.Maxscale, err = scanBigInt(maxscale); err != nil {
		return nil, err
	}
	if s.PTSupply, err = scanBigInt(ptSupply); err != nil {
		return nil, err
	}
	if s.YTSupply, err = scanBigInt(ytSupply); err != nil {
		return nil, err
	}
	if s.IssuanceFees, err = scanBigInt(fees); err != nil {
		return nil, err
	}
	if s.TargetBalance, err = scanBigInt(target); err != nil {
		return nil, err
	}
	if s.SolvencyDrift, err = scanBigInt(drift); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetLatestPoolSnapshot retrieves the most recent pool snapshot.
func GetLatestPoolSnapshot() (*types.PoolSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT snapshot_timestamp, total_underlying, total_base_lpt,
			last_ln_implied_rate, lp_supply, protocol_fees, implied_apy
		FROM pool_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1
	`

	var s types.PoolSnapshot
	var underlying, baseLpt, rate, lpSupply, fees string

	err := DB.QueryRow(query).Scan(
		&s.Timestamp, &underlying, &baseLpt,
		&rate, &lpSupply, &fees, &s.ImpliedAPY,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no pool snapshots found")
		}
		return nil, fmt.Errorf("failed to query latest pool snapshot: %w", err)
	}

	if s.TotalUnderlying, err = scanBigInt(underlying); err != nil {
		return nil, err
	}
	if s.TotalBaseLpt, err = scanBigInt(baseLpt); err != nil {
		return nil, err
	}
	if s.LastLnImpliedRate, err = scanBigInt(rate); err != nil {
		return nil, err
	}
	if s.LpSupply, err = scanBigInt(lpSupply); err != nil {
		return nil, err
	}
	if s.ProtocolFees, err = scanBigInt(fees); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSnapshottedSeriesIDs lists every series that has at least one snapshot.
func GetSnapshottedSeriesIDs() ([]types.SeriesID, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`SELECT DISTINCT series_id FROM series_snapshots ORDER BY series_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query series ids: %w", err)
	}
	defer rows.Close()

	var ids []types.SeriesID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Error().Err(err).Msg("Failed to scan series id row")
			continue
		}
		ids = append(ids, types.SeriesID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return ids, nil
}
