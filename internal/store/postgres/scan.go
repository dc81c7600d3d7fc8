package postgres

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"campusconnect/internal/domain"
)

const (
	codeUniqueViolation = "23505"
	codeInvalidText     = "22P02"
	codeCheckViolation  = "23514"
)

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func textOrEmpty(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

func timestamptzPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time
	return &tt
}

func uuidOrEmpty(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuidBytesToString(u.Bytes)
}

func uuidBytesToString(b [16]byte) string {
	var buf [36]byte
	hex.Encode(buf[0:8], b[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], b[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], b[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], b[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:36], b[10:16])
	return string(buf[:])
}

func textArrayOrEmpty(a pgtype.FlatArray[string]) []string {
	if a == nil {
		return nil
	}
	return []string(a)
}

func textArrayParam(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

// summaryCols selects the joined profile aliased p; scan it with summaryScan.
const summaryCols = `p.id, p.full_name, p.username, p.profile_pic_url, p.branch, p.year_of_study, p.skills`

type summaryScan struct {
	id       pgtype.UUID
	fullName pgtype.Text
	username pgtype.Text
	avatar   pgtype.Text
	branch   pgtype.Text
	year     pgtype.Text
	skills   pgtype.FlatArray[string]
}

func (s *summaryScan) dest() []any {
	return []any{&s.id, &s.fullName, &s.username, &s.avatar, &s.branch, &s.year, &s.skills}
}

// summary returns the joined profile, or the unknown placeholder when the
// LEFT JOIN found nothing.
func (s *summaryScan) summary(profileID string) domain.ProfileSummary {
	if !s.id.Valid {
		return domain.UnknownProfile(profileID)
	}
	return domain.ProfileSummary{
		ID:          uuidOrEmpty(s.id),
		FullName:    textOrEmpty(s.fullName),
		Username:    textOrEmpty(s.username),
		AvatarURL:   textOrEmpty(s.avatar),
		Branch:      textOrEmpty(s.branch),
		YearOfStudy: textOrEmpty(s.year),
		Skills:      textArrayOrEmpty(s.skills),
	}
}

// readError maps a single-row read failure. Ids that are not UUIDs cannot
// name a row, so they read as not found too.
func readError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == codeInvalidText {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func writeError(op string, err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		switch pgerr.Code {
		case codeCheckViolation, codeInvalidText:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrValidation, pgerr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
