// ./internal/state/receipt_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stripfi/ysm/internal/types"
)

// SaveOperationReceipt persists one audit receipt. The op_id is unique, so a
// replayed receipt is a conflict rather than a duplicate row.
func SaveOperationReceipt(r types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO operation_receipts (
			op_id, op_timestamp, kind, series_id, account,
			amount_in, amount_out, fee, protocol_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		r.ID, r.Timestamp, string(r.Kind), string(r.SeriesID), string(r.Account),
		r.AmountIn.String(), r.AmountOut.String(), r.Fee.String(), r.ProtocolFee.String(),
	).Scan(&receiptID)

	if err != nil {
		return 0, fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("kind", string(r.Kind)).
		Str("op_id", r.ID).
		Msg("Operation receipt saved")
	return receiptID, nil
}

// GetRecentReceipts retrieves recent operation receipts, newest first.
func GetRecentReceipts(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20 // Default limit
	}

	query := `
		SELECT op_id, op_timestamp, kind, series_id, account,
			amount_in, amount_out, fee, protocol_fee
		FROM operation_receipts
		ORDER BY op_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent receipts")
		return nil, fmt.Errorf("failed to query recent receipts: %w", err)
	}
	defer rows.Close()

	receipts, err := scanReceiptRows(rows)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("count", len(receipts)).Int("limit", limit).Msg("Retrieved recent receipts")
	return receipts, nil
}

// GetReceiptsBySeries retrieves receipts for one series, newest first.
func GetReceiptsBySeries(seriesID types.SeriesID, limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT op_id, op_timestamp, kind, series_id, account,
			amount_in, amount_out, fee, protocol_fee
		FROM operation_receipts
		WHERE series_id = $1
		ORDER BY op_timestamp DESC
		LIMIT $2
	`

	rows, err := DB.Query(query, string(seriesID), limit)
	if err != nil {
		log.Error().Err(err).Str("series_id", string(seriesID)).Msg("Failed to query receipts by series")
		return nil, fmt.Errorf("failed to query receipts for series '%s': %w", seriesID, err)
	}
	defer rows.Close()

	return scanReceiptRows(rows)
}

// GetReceiptByOpID retrieves a single receipt by its operation UUID.
func GetReceiptByOpID(opID string) (*types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT op_id, op_timestamp, kind, series_id, account,
			amount_in, amount_out, fee, protocol_fee
		FROM operation_receipts
		WHERE op_id = $1
	`

	var r types.OperationReceipt
	var kind, seriesID, account string
	var amountIn, amountOut, fee, protocolFee string

	err := DB.QueryRow(query, opID).Scan(
		&r.ID, &r.Timestamp, &kind, &seriesID, &account,
		&amountIn, &amountOut, &fee, &protocolFee,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("receipt with op_id %s not found", opID)
		}
		return nil, fmt.Errorf("failed to query receipt by op_id: %w", err)
	}

	if err := fillReceiptAmounts(&r, kind, seriesID, account, amountIn, amountOut, fee, protocolFee); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanReceiptRows(rows *sql.Rows) ([]types.OperationReceipt, error) {
	var receipts []types.OperationReceipt
	for rows.Next() {
		var r types.OperationReceipt
		var kind, seriesID, account string
		var amountIn, amountOut, fee, protocolFee string

		err := rows.Scan(
			&r.ID, &r.Timestamp, &kind, &seriesID, &account,
			&amountIn, &amountOut, &fee, &protocolFee,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan receipt row")
			continue // Skip this row and continue with others
		}

		if err := fillReceiptAmounts(&r, kind, seriesID, account, amountIn, amountOut, fee, protocolFee); err != nil {
			log.Error().Err(err).Str("op_id", r.ID).Msg("Failed to parse receipt amounts")
			continue
		}
		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return receipts, nil
}

func fillReceiptAmounts(r *types.OperationReceipt, kind, seriesID, account, amountIn, amountOut, fee, protocolFee string) error {
	r.Kind = types.OperationKind(kind)
	r.SeriesID = types.SeriesID(seriesID)
	r.Account = types.Account(account)

	var err error
	if r.AmountIn, err = scanBigInt(amountIn); err != nil {
		return fmt.Errorf("amount_in: %w", err)
	}
	if r.AmountOut, err = scanBigInt(amountOut); err != nil {
		return fmt.Errorf("amount_out: %w", err)
	}
	if r.Fee, err = scanBigInt(fee); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	if r.ProtocolFee, err = scanBigInt(protocolFee); err != nil {
		return fmt.Errorf("protocol_fee: %w", err)
	}
	return nil
}
