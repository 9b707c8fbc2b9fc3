package store

import (
	"context"
	"fmt"

	"neurocare-api/internal/model"
)

// UpsertConnectUser keeps exactly one row per user; the latest submission wins.
func (q *Queries) UpsertConnectUser(ctx context.Context, cu *model.ConnectUser) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO connect_users (user_id, issue_description, stress_category)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (user_id) DO UPDATE
		   SET issue_description = EXCLUDED.issue_description,
		       stress_category   = EXCLUDED.stress_category,
		       updated_at        = now()
		 RETURNING id, created_at, updated_at`,
		cu.UserID, cu.IssueDescription, cu.StressCategory,
	).Scan(&cu.ID, &cu.CreatedAt, &cu.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert connect user: %w", mapErr(err))
	}
	return nil
}

func (q *Queries) PeerMatches(ctx context.Context, c model.StressCategory, excludeUserID int64, limit int) ([]model.PeerMatch, error) {
	rows, err := q.db.Query(ctx,
		`SELECT u.name, u.email
		 FROM connect_users cu
		 JOIN users u ON u.id = cu.user_id
		 WHERE cu.stress_category = $1
		   AND cu.user_id <> $2
		 ORDER BY cu.updated_at DESC, cu.id DESC
		 LIMIT $3`, c, excludeUserID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("peer matches: %w", err)
	}
	defer rows.Close()

	out := []model.PeerMatch{}
	for rows.Next() {
		var p model.PeerMatch
		if err := rows.Scan(&p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
