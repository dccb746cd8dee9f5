package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertReportSQL = `INSERT INTO analysis_reports (
        asset_id,
        bucket_ts,
        total_holders,
        pages_examined,
        partial_census,
        top10_pct,
        top50_pct,
        gini,
        liquidity_usd,
        volume_24h_usd,
        metadata_score,
        security_score,
        total_score,
        grade,
        market_data,
        status,
        warnings,
        payload
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
    )
    ON CONFLICT (asset_id, bucket_ts) DO UPDATE
    SET
        total_holders  = EXCLUDED.total_holders,
        pages_examined = EXCLUDED.pages_examined,
        partial_census = EXCLUDED.partial_census,
        top10_pct      = EXCLUDED.top10_pct,
        top50_pct      = EXCLUDED.top50_pct,
        gini           = EXCLUDED.gini,
        liquidity_usd  = EXCLUDED.liquidity_usd,
        volume_24h_usd = EXCLUDED.volume_24h_usd,
        metadata_score = EXCLUDED.metadata_score,
        security_score = EXCLUDED.security_score,
        total_score    = EXCLUDED.total_score,
        grade          = EXCLUDED.grade,
        market_data    = EXCLUDED.market_data,
        status         = EXCLUDED.status,
        warnings       = EXCLUDED.warnings,
        payload        = EXCLUDED.payload;`

	reportColumns = `asset_id,
        bucket_ts,
        total_holders,
        pages_examined,
        partial_census,
        top10_pct,
        top50_pct,
        gini,
        liquidity_usd,
        volume_24h_usd,
        metadata_score,
        security_score,
        total_score,
        grade,
        market_data,
        status,
        warnings,
        payload,
        created_at`

	listReportsBetweenSQL = `SELECT ` + reportColumns + `
    FROM analysis_reports
    WHERE asset_id = $1
      AND bucket_ts >= $2
      AND bucket_ts < $3
    ORDER BY bucket_ts;`

	listRecentReportsSQL = `SELECT ` + reportColumns + `
    FROM analysis_reports
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	countReportsSQL = `SELECT COUNT(*) FROM analysis_reports;`

	insertAlertSQL = `INSERT INTO alerts (
        asset_id,
        bucket_ts,
        kind,
        message,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (asset_id, bucket_ts, kind) DO UPDATE
    SET message  = EXCLUDED.message,
        channels = EXCLUDED.channels
    RETURNING id, asset_id, bucket_ts, kind, message, channels, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        asset_id,
        bucket_ts,
        kind,
        message,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ReportStore defines operations for analysis report persistence.
type ReportStore interface {
	UpsertReport(ctx context.Context, report AnalysisReport) error
	ListReportsBetween(ctx context.Context, assetID string, from, to time.Time) ([]AnalysisReport, error)
	ListRecentReports(ctx context.Context, limit int) ([]AnalysisReport, error)
	CountReports(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to analysis reports and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertReport persists or updates an analysis report.
func (s *Store) UpsertReport(ctx context.Context, report AnalysisReport) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var liquidity, volume interface{}
	if report.LiquidityUSD != nil {
		liquidity = *report.LiquidityUSD
	}
	if report.Volume24hUSD != nil {
		volume = *report.Volume24hUSD
	}

	_, execErr := pool.Exec(ctx, upsertReportSQL,
		report.AssetID,
		report.Bucket,
		report.TotalHolders,
		report.PagesExamined,
		report.PartialCensus,
		report.Top10Pct,
		report.Top50Pct,
		report.Gini,
		liquidity,
		volume,
		report.MetadataScore,
		report.SecurityScore,
		report.TotalScore,
		report.Grade,
		report.MarketData,
		report.Status,
		report.Warnings,
		[]byte(report.Payload),
	)
	if execErr != nil {
		return fmt.Errorf("upsert analysis report: %w", execErr)
	}
	return nil
}

// ListReportsBetween lists one asset's reports within a time window.
func (s *Store) ListReportsBetween(ctx context.Context, assetID string, from, to time.Time) ([]AnalysisReport, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listReportsBetweenSQL, assetID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list reports between: %w", queryErr)
	}
	defer rows.Close()

	reports := make([]AnalysisReport, 0)
	for rows.Next() {
		report, scanErr := scanReport(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		reports = append(reports, report)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return reports, nil
}

// ListRecentReports lists the most recent reports ordered by descending
// bucket, across all monitored assets.
func (s *Store) ListRecentReports(ctx context.Context, limit int) ([]AnalysisReport, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentReportsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent reports: %w", queryErr)
	}
	defer rows.Close()

	reports := make([]AnalysisReport, 0, limit)
	for rows.Next() {
		report, scanErr := scanReport(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		reports = append(reports, report)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return reports, nil
}

// CountReports counts stored reports.
func (s *Store) CountReports(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countReportsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count reports: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.AssetID,
		alert.Bucket,
		alert.Kind,
		alert.Message,
		alert.Channels,
	)

	var rec AlertRecord
	if scanErr := row.Scan(
		&rec.ID,
		&rec.AssetID,
		&rec.Bucket,
		&rec.Kind,
		&rec.Message,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}

	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.AssetID,
			&rec.Bucket,
			&rec.Kind,
			&rec.Message,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanReport(rows pgx.Rows) (AnalysisReport, error) {
	var (
		report    AnalysisReport
		liquidity sql.NullFloat64
		volume    sql.NullFloat64
		payload   json.RawMessage
	)

	if err := rows.Scan(
		&report.AssetID,
		&report.Bucket,
		&report.TotalHolders,
		&report.PagesExamined,
		&report.PartialCensus,
		&report.Top10Pct,
		&report.Top50Pct,
		&report.Gini,
		&liquidity,
		&volume,
		&report.MetadataScore,
		&report.SecurityScore,
		&report.TotalScore,
		&report.Grade,
		&report.MarketData,
		&report.Status,
		&report.Warnings,
		&payload,
		&report.CreatedAt,
	); err != nil {
		return AnalysisReport{}, err
	}

	if liquidity.Valid {
		value := liquidity.Float64
		report.LiquidityUSD = &value
	}
	if volume.Valid {
		value := volume.Float64
		report.Volume24hUSD = &value
	}
	report.Payload = payload

	return report, nil
}
