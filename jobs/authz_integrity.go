package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegisgate/aegisgate/internal/shared"
)

// RunAuthzIntegrityCheck verifies the seeded authorization data is intact:
// every core permission exists and the admin role still holds all of them.
// Anomalies are logged, not repaired.
func RunAuthzIntegrityCheck(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	scopes := shared.CoreScopes()

	present := make(map[string]struct{}, len(scopes))
	rows, err := pool.Query(ctx, `SELECT name FROM permissions WHERE name = ANY($1)`, scopes)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	held := make(map[string]struct{}, len(scopes))
	heldRows, err := pool.Query(ctx, `
		SELECT p.name
		FROM roles r
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE r.name = 'admin'`)
	if err != nil {
		return err
	}
	defer heldRows.Close()
	for heldRows.Next() {
		var name string
		if err := heldRows.Scan(&name); err != nil {
			return err
		}
		held[name] = struct{}{}
	}
	if err := heldRows.Err(); err != nil {
		return err
	}

	var missing, unheld []string
	for _, scope := range scopes {
		if _, ok := present[scope]; !ok {
			missing = append(missing, scope)
		}
		if _, ok := held[scope]; !ok {
			unheld = append(unheld, scope)
		}
	}

	if logger != nil {
		if len(missing) > 0 || len(unheld) > 0 {
			logger.Warn("authorization integrity check found anomalies",
				slog.Any("missing_permissions", missing),
				slog.Any("unheld_by_admin", unheld))
		} else {
			logger.Info("authorization integrity check passed", slog.Int("scopes", len(scopes)))
		}
	}
	return nil
}
