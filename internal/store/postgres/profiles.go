package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusconnect/internal/domain"
)

type ProfilesStore struct {
	pool *pgxpool.Pool
}

func NewProfilesStore(pool *pgxpool.Pool) *ProfilesStore {
	return &ProfilesStore{pool: pool}
}

const profileCols = `id, username, full_name, branch, year_of_study, skills, bio, profile_pic_url,
	is_online, last_seen, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var (
		p        domain.Profile
		idUUID   pgtype.UUID
		branch   pgtype.Text
		year     pgtype.Text
		skills   pgtype.FlatArray[string]
		bio      pgtype.Text
		avatar   pgtype.Text
		lastSeen pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&p.Username,
		&p.FullName,
		&branch,
		&year,
		&skills,
		&bio,
		&avatar,
		&p.IsOnline,
		&lastSeen,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	p.ID = uuidOrEmpty(idUUID)
	p.Branch = textOrEmpty(branch)
	p.YearOfStudy = textOrEmpty(year)
	p.Skills = textArrayOrEmpty(skills)
	p.Bio = textOrEmpty(bio)
	p.AvatarURL = textOrEmpty(avatar)
	p.LastSeen = timestamptzPtr(lastSeen)
	return p, nil
}

func (s *ProfilesStore) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	q := `SELECT ` + profileCols + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.Profile{}, readError("get profile", err)
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields of patch. Optional text fields set
// to "" are stored as NULL.
func (s *ProfilesStore) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.Branch != nil {
		add("branch", nullIfEmpty(*patch.Branch))
	}
	if patch.YearOfStudy != nil {
		add("year_of_study", nullIfEmpty(*patch.YearOfStudy))
	}
	if patch.Skills != nil {
		add("skills", textArrayParam(*patch.Skills))
	}
	if patch.Bio != nil {
		add("bio", nullIfEmpty(*patch.Bio))
	}
	if patch.AvatarURL != nil {
		add("profile_pic_url", nullIfEmpty(*patch.AvatarURL))
	}

	q := `UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + profileCols
	p, err := scanProfile(s.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return domain.Profile{}, updateProfileError(err)
	}
	return p, nil
}

func updateProfileError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == codeUniqueViolation && pgerr.ConstraintName == "profiles_username_uq" {
		return domain.NewValidationError(map[string]string{"username": "already taken"})
	}
	return readError("update profile", err)
}

func (s *ProfilesStore) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]domain.ProfileSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.ProfileSummary{}, nil
	}

	like := "%" + escapeLike(query) + "%"
	const q = `
		SELECT ` + summaryCols + `
		FROM profiles p
		WHERE p.id::text <> $3
		  AND (p.full_name ILIKE $1 OR p.username ILIKE $1 OR p.branch ILIKE $1)
		ORDER BY p.full_name ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, q, like, limit, excludeID)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	out := []domain.ProfileSummary{}
	for rows.Next() {
		var sum summaryScan
		if err := rows.Scan(sum.dest()...); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, sum.summary(""))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
