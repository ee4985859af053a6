package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore lee claves de la tabla signing_keys (ver migrations/postgres).
type PGStore struct {
	pool *pgxpool.Pool

	// Now permite fijar el reloj; se pasa como parámetro a las queries para que
	// la ventana [not_before, not_after) use el reloj de la app y no el de la DB.
	Now func() time.Time
}

func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("keys: pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("keys: pg ping: %w", err)
	}
	return &PGStore{pool: pool, Now: time.Now}, nil
}

func (s *PGStore) Close() { s.pool.Close() }

// Pool expone el pool para métricas.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PGStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func scanKey(row pgx.Row) (SigningKey, error) {
	var rec record
	var notAfter *time.Time
	if err := row.Scan(&rec.KID, &rec.Algorithm, &rec.PrivateKeyPEM, &rec.NotBefore, &notAfter); err != nil {
		return SigningKey{}, err
	}
	if notAfter != nil {
		rec.NotAfter = *notAfter
	}
	return rec.signingKey()
}

// ActiveKey: clave más reciente con $1 ∈ [not_before, not_after)
func (s *PGStore) ActiveKey(ctx context.Context) (*SigningKey, error) {
	const q = `
SELECT kid, alg, private_key_pem, not_before, not_after
FROM signing_keys
WHERE not_before <= $1 AND (not_after IS NULL OR not_after > $1)
ORDER BY not_before DESC, kid DESC
LIMIT 1`
	k, err := scanKey(s.pool.QueryRow(ctx, q, s.now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveKey
		}
		return nil, err
	}
	return &k, nil
}

// List: claves no vencidas (activas y programadas)
func (s *PGStore) List(ctx context.Context) ([]SigningKey, error) {
	const q = `
SELECT kid, alg, private_key_pem, not_before, not_after
FROM signing_keys
WHERE not_after IS NULL OR not_after > $1
ORDER BY not_before DESC, kid DESC`
	rows, err := s.pool.Query(ctx, q, s.now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SigningKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *PGStore) Insert(ctx context.Context, k *SigningKey) error {
	rec, err := toRecord(k)
	if err != nil {
		return err
	}
	var notAfter *time.Time
	if !rec.NotAfter.IsZero() {
		notAfter = &rec.NotAfter
	}
	const q = `
INSERT INTO signing_keys (kid, alg, private_key_pem, not_before, not_after)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (kid) DO NOTHING`
	tag, err := s.pool.Exec(ctx, q, rec.KID, rec.Algorithm, rec.PrivateKeyPEM, rec.NotBefore, notAfter)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyExists
	}
	return nil
}
