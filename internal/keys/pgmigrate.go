package keys

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	migrations "github.com/dropDatabas3/ofbmock/migrations/postgres"
)

// MigrationFiles lista las migraciones embebidas de la tabla signing_keys en el
// orden en que se aplican: ascendente para "up", descendente para "down".
func MigrationFiles(direction string) ([]string, error) {
	var suffix string
	switch direction {
	case "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		return nil, fmt.Errorf("keys: unknown migration direction %q (up|down)", direction)
	}
	entries, err := fs.ReadDir(migrations.KeysFS, migrations.KeysDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, path.Join(migrations.KeysDir, e.Name()))
		}
	}
	sort.Strings(out)
	if direction == "down" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// ApplyMigrations ejecuta hasta steps migraciones (0 = todas). Devuelve los
// archivos aplicados. Las migraciones up son idempotentes.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, direction string, steps int) ([]string, error) {
	files, err := MigrationFiles(direction)
	if err != nil {
		return nil, err
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}
	for i, f := range files {
		sql, err := fs.ReadFile(migrations.KeysFS, f)
		if err != nil {
			return files[:i], fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return files[:i], fmt.Errorf("exec %s: %w", f, err)
		}
	}
	return files, nil
}

// Migrate crea la tabla signing_keys si no existe.
func (s *PGStore) Migrate(ctx context.Context) error {
	_, err := ApplyMigrations(ctx, s.pool, "up", 0)
	return err
}
