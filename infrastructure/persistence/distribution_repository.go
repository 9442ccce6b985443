package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
)

var ErrRecordNotFound = repository.ErrRecordNotFound

const recordColumns = `id, creator_id, platform, status, external_id, permalink, schedule_id, error_message, attempt_count, created_at, updated_at`

// DistributionRepository implements distribution persistence using PostgreSQL (native sql.DB)
type DistributionRepository struct {
	db *sql.DB
}

func NewDistributionRepository(db *sql.DB) repository.IDistribution {
	return &DistributionRepository{db: db}
}

func (r *DistributionRepository) CreateRecord(ctx context.Context, rec *model.DistributionRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Platform = strings.ToLower(rec.Platform)
	q := `INSERT INTO distribution_records (creator_id, platform, status, external_id, permalink, schedule_id, error_message, attempt_count, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`
	return r.db.QueryRowContext(ctx, q, rec.CreatorID, rec.Platform, rec.Status, rec.ExternalID, rec.Permalink, rec.ScheduleID, rec.ErrorMessage, rec.AttemptCount, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID)
}

// UpdateRecordResult stores the outcome of one attempt. Existing external id and
// permalink are kept when the new values are nil.
func (r *DistributionRepository) UpdateRecordResult(ctx context.Context, recordID int64, status string, externalID, permalink, errMsg *string) error {
	q := `UPDATE distribution_records SET
			status=$1,
			external_id=COALESCE($2, external_id),
			permalink=COALESCE($3, permalink),
			error_message=$4,
			attempt_count=attempt_count+1,
			updated_at=$5
		  WHERE id=$6`
	res, err := r.db.ExecContext(ctx, q, status, externalID, permalink, errMsg, time.Now().UTC(), recordID)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *DistributionRepository) MarkDeleted(ctx context.Context, creatorID, platform, externalID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE distribution_records SET status=$1, updated_at=$2 WHERE creator_id=$3 AND platform=$4 AND external_id=$5`,
		model.DistributionStatusDeleted, time.Now().UTC(), creatorID, strings.ToLower(platform), externalID)
	return err
}

func (r *DistributionRepository) FindByScheduleID(ctx context.Context, scheduleID string) (*model.DistributionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM distribution_records WHERE schedule_id=$1 ORDER BY id DESC LIMIT 1`, scheduleID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

func (r *DistributionRepository) ListRecords(ctx context.Context, creatorID string, limit int) ([]*model.DistributionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM distribution_records WHERE creator_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, creatorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.DistributionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// CreateAudit appends audit rows in one transaction.
func (r *DistributionRepository) CreateAudit(ctx context.Context, audits []*model.DistributionAudit) (err error) {
	if len(audits) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	q := `INSERT INTO distribution_audit (record_id, creator_id, platform, operation, status, error_message, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	now := time.Now().UTC()
	for _, a := range audits {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if _, err = tx.ExecContext(ctx, q, a.RecordID, a.CreatorID, strings.ToLower(a.Platform), a.Operation, a.Status, a.ErrorMessage, a.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.DistributionRecord, error) {
	rec := &model.DistributionRecord{}
	var externalID, permalink, scheduleID, errMsg sql.NullString
	if err := s.Scan(&rec.ID, &rec.CreatorID, &rec.Platform, &rec.Status, &externalID, &permalink, &scheduleID, &errMsg, &rec.AttemptCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ExternalID = nullString(externalID)
	rec.Permalink = nullString(permalink)
	rec.ScheduleID = nullString(scheduleID)
	rec.ErrorMessage = nullString(errMsg)
	return rec, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
