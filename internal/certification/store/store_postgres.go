package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"

	"certreg/internal/certification/models"
	"certreg/internal/certification/ports"
	"certreg/internal/platform/postgres"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/sentinel"
	txcontext "certreg/pkg/platform/tx"
)

// defaultTxTimeout bounds the database round trips of a registry transaction,
// row lock wait included, when the caller set no deadline.
const defaultTxTimeout = 5 * time.Second

// Postgres stores entries in the certifications table and the registry
// configuration in the single registry_config row. Inside RunInTx the row is
// locked FOR UPDATE, so concurrent mints serialize even across processes.
type Postgres struct {
	db *sql.DB
	q  txcontext.Querier
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, q: db}
}

const selectEntry = `
	SELECT id, teacher_id, issuer, doc_hash, issue_date, expiry_date,
	       to_json(subjects)::text, issuing_body, owner
	FROM certifications
	WHERE id = $1
`

func (s *Postgres) Get(ctx context.Context, id domain.CertID) (*models.Entry, error) {
	var (
		rawID       int64
		teacherID   string
		issuer      string
		issueDate   int64
		expiryDate  sql.NullInt64
		subjectsRaw string
		owner       string
		entry       models.Entry
	)
	err := s.q.QueryRowContext(ctx, selectEntry, int64(id)).Scan(
		&rawID,
		&teacherID,
		&issuer,
		&entry.Record.DocHash,
		&issueDate,
		&expiryDate,
		&subjectsRaw,
		&entry.Record.IssuingBody,
		&owner,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get certification: %w", err)
	}
	if err := json.Unmarshal([]byte(subjectsRaw), &entry.Record.Subjects); err != nil {
		return nil, fmt.Errorf("decode certification subjects: %w", err)
	}

	entry.ID = domain.CertID(rawID)
	entry.Owner = domain.Principal(owner)
	entry.Record.TeacherID = domain.Principal(teacherID)
	entry.Record.Issuer = domain.Principal(issuer)
	entry.Record.IssueDate = uint64(issueDate)
	if expiryDate.Valid {
		exp := uint64(expiryDate.Int64)
		entry.Record.ExpiryDate = &exp
	}
	return &entry, nil
}

func (s *Postgres) Exists(ctx context.Context, id domain.CertID) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM certifications WHERE id = $1)`,
		int64(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check certification: %w", err)
	}
	return exists, nil
}

func (s *Postgres) Insert(ctx context.Context, entry *models.Entry) error {
	issueDate, err := toBigint(entry.Record.IssueDate)
	if err != nil {
		return err
	}
	var expiry sql.NullInt64
	if entry.Record.ExpiryDate != nil {
		v, err := toBigint(*entry.Record.ExpiryDate)
		if err != nil {
			return err
		}
		expiry = sql.NullInt64{Int64: v, Valid: true}
	}

	query := `
		INSERT INTO certifications (
			id, teacher_id, issuer, doc_hash, issue_date, expiry_date,
			subjects, issuing_body, owner
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.q.ExecContext(ctx, query,
		int64(entry.ID),
		entry.Record.TeacherID.String(),
		entry.Record.Issuer.String(),
		entry.Record.DocHash,
		issueDate,
		expiry,
		pq.Array(entry.Record.Subjects),
		entry.Record.IssuingBody,
		entry.Owner.String(),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certification: %w", err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id domain.CertID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM certifications WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete certification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete certification: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectConfig = `
	SELECT next_cert_id, max_certs, mint_fee, treasury, controlling_authority
	FROM registry_config
	WHERE singleton
`

func (s *Postgres) Load(ctx context.Context) (*models.RegistryConfig, error) {
	return s.scanConfig(s.q.QueryRowContext(ctx, selectConfig))
}

// LoadForUpdate seeds the row with defaults when absent, then locks it.
func (s *Postgres) LoadForUpdate(ctx context.Context, defaults models.RegistryConfig) (*models.RegistryConfig, error) {
	if err := s.upsertConfig(ctx, &defaults, false); err != nil {
		return nil, err
	}
	return s.scanConfig(s.q.QueryRowContext(ctx, selectConfig+" FOR UPDATE"))
}

func (s *Postgres) Save(ctx context.Context, cfg *models.RegistryConfig) error {
	return s.upsertConfig(ctx, cfg, true)
}

func (s *Postgres) upsertConfig(ctx context.Context, cfg *models.RegistryConfig, overwrite bool) error {
	values := make([]int64, 3)
	for i, v := range []uint64{uint64(cfg.NextCertID), cfg.MaxCerts, cfg.MintFee} {
		n, err := toBigint(v)
		if err != nil {
			return err
		}
		values[i] = n
	}
	var authority sql.NullString
	if cfg.ControllingAuthority != nil {
		authority = sql.NullString{String: cfg.ControllingAuthority.String(), Valid: true}
	}

	conflict := `DO NOTHING`
	if overwrite {
		conflict = `DO UPDATE SET
			next_cert_id = EXCLUDED.next_cert_id,
			max_certs = EXCLUDED.max_certs,
			mint_fee = EXCLUDED.mint_fee,
			treasury = EXCLUDED.treasury,
			controlling_authority = EXCLUDED.controlling_authority`
	}
	query := `
		INSERT INTO registry_config (
			singleton, next_cert_id, max_certs, mint_fee, treasury, controlling_authority
		)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (singleton) ` + conflict

	if _, err := s.q.ExecContext(ctx, query, values[0], values[1], values[2], cfg.Treasury.String(), authority); err != nil {
		return fmt.Errorf("save registry config: %w", err)
	}
	return nil
}

func (s *Postgres) scanConfig(row *sql.Row) (*models.RegistryConfig, error) {
	var (
		next, maxCerts, fee int64
		treasury            string
		authority           sql.NullString
	)
	if err := row.Scan(&next, &maxCerts, &fee, &treasury, &authority); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load registry config: %w", err)
	}
	cfg := &models.RegistryConfig{
		NextCertID: domain.CertID(next),
		MaxCerts:   uint64(maxCerts),
		MintFee:    uint64(fee),
		Treasury:   domain.Principal(treasury),
	}
	if authority.Valid {
		a := domain.Principal(authority.String)
		cfg.ControllingAuthority = &a
	}
	return cfg, nil
}

// RunInTx implements ports.RegistryTx on one database transaction.
func (s *Postgres) RunInTx(ctx context.Context, fn func(stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	return txcontext.Run(ctx, s.db, func(q txcontext.Querier) error {
		txStore := &Postgres{db: s.db, q: q}
		return fn(ports.Stores{Certs: txStore, Config: txStore})
	})
}

func toBigint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "value exceeds storable range")
	}
	return int64(v), nil
}
