package store

import (
	"context"
	"fmt"

	"neurocare-api/internal/model"
)

func (q *Queries) CreateUser(ctx context.Context, u *model.User) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO users (name, email, password, role) VALUES ($1,$2,$3,$4) RETURNING id`,
		u.Name, u.Email, u.PasswordHash, u.Role,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("create user: %w", mapErr(err))
	}
	return nil
}

func (q *Queries) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := q.db.QueryRow(ctx,
		`SELECT id, name, email, password, role FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role)
	if err != nil {
		return nil, fmt.Errorf("user by email: %w", mapErr(err))
	}
	return u, nil
}

func (q *Queries) UserByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := q.db.QueryRow(ctx,
		`SELECT id, name, email, password, role FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role)
	if err != nil {
		return nil, fmt.Errorf("user by id: %w", mapErr(err))
	}
	return u, nil
}

func (q *Queries) CreateCounselor(ctx context.Context, c *model.Counselor) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO counselors (user_id, specialization, bio, years_of_experience)
		 VALUES ($1,$2,$3,$4) RETURNING id`,
		c.UserID, c.Specialization, c.Bio, c.YearsOfExperience,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create counselor: %w", mapErr(err))
	}
	return nil
}

const counselorCols = `
	SELECT c.id, u.id, u.name, u.email, c.specialization, c.bio, c.years_of_experience
	FROM users u
	JOIN counselors c ON c.user_id = u.id
	WHERE u.role = 'counselor'`

func (q *Queries) ListCounselors(ctx context.Context) ([]model.Counselor, error) {
	rows, err := q.db.Query(ctx, counselorCols+` ORDER BY u.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list counselors: %w", err)
	}
	defer rows.Close()

	var out []model.Counselor
	for rows.Next() {
		var c model.Counselor
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Specialization, &c.Bio, &c.YearsOfExperience); err != nil {
			return nil, fmt.Errorf("scan counselor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CounselorByID matches either the user id or the counselor id; a user id match wins.
func (q *Queries) CounselorByID(ctx context.Context, id int64) (*model.Counselor, error) {
	c := &model.Counselor{}
	err := q.db.QueryRow(ctx,
		counselorCols+` AND (u.id = $1 OR c.id = $1) ORDER BY (u.id = $1) DESC LIMIT 1`, id,
	).Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Specialization, &c.Bio, &c.YearsOfExperience)
	if err != nil {
		return nil, fmt.Errorf("counselor by id: %w", mapErr(err))
	}
	return c, nil
}

func (q *Queries) CounselorIDByUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `SELECT id FROM counselors WHERE user_id = $1`, userID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("counselor id: %w", mapErr(err))
	}
	return id, nil
}

// LockCounselor resolves the counselor id and holds the row lock until the
// surrounding transaction ends, serialising slot writes per counselor.
func (q *Queries) LockCounselor(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `SELECT id FROM counselors WHERE user_id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lock counselor: %w", mapErr(err))
	}
	return id, nil
}
