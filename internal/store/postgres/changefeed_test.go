package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

func TestDecodeChange(t *testing.T) {
	n := &pgconn.Notification{
		Channel: ChangeChannel,
		Payload: `{"table":"direct_messages","op":"INSERT","id":"m1","columns":{"sender_id":"a","receiver_id":"b"}}`,
	}
	ev, err := DecodeChange(n)
	if err != nil {
		t.Fatalf("DecodeChange: %v", err)
	}
	if ev.Table != changes.TableMessages || ev.Op != changes.OpInsert || ev.ID != "m1" {
		t.Fatalf("event = %+v", ev)
	}
	f := changes.Where(changes.TableMessages, changes.Match{"sender_id": "a", "receiver_id": "b"})
	if !f.Matches(ev) {
		t.Fatalf("filter %s should match %+v", f.Key(), ev)
	}
}

func TestDecodeChangeRejectsBadPayloads(t *testing.T) {
	for _, payload := range []string{`not json`, `{"op":"INSERT","id":"x"}`, `{"table":"posts","op":"INSERT"}`} {
		if _, err := DecodeChange(&pgconn.Notification{Payload: payload}); err == nil {
			t.Fatalf("DecodeChange(%q) expected error", payload)
		}
	}
	if _, err := DecodeChange(nil); err == nil {
		t.Fatalf("DecodeChange(nil) expected error")
	}
}

func TestSummaryFallsBackToUnknown(t *testing.T) {
	var s summaryScan
	got := s.summary("u1")
	if !got.IsUnknown() || got.ID != "u1" {
		t.Fatalf("summary = %+v", got)
	}

	s.id = pgtype.UUID{Bytes: [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 1, 2, 3, 4, 5, 6, 7, 8}, Valid: true}
	s.fullName = pgtype.Text{String: "Alice Doe", Valid: true}
	s.skills = pgtype.FlatArray[string]{"go"}
	got = s.summary("ignored")
	if got.ID != "12345678-9abc-def0-0102-030405060708" || got.FullName != "Alice Doe" || len(got.Skills) != 1 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestReadErrorMapping(t *testing.T) {
	if err := readError("op", &pgconn.PgError{Code: codeInvalidText}); err != domain.ErrNotFound {
		t.Fatalf("invalid uuid should read as not found, got %v", err)
	}
	err := writeError("insert post", &pgconn.PgError{Code: codeCheckViolation, Message: "violates check"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("check violation should be a validation error, got %v", err)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		want     error
		notFound bool
	}{
		{"pair exists", insertConnectionError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "connections_pair_uq"}), domain.ErrDuplicateConnection, false},
		{"other unique", insertConnectionError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "connections_pkey"}), nil, false},
		{"bad status", insertConnectionError(&pgconn.PgError{Code: codeCheckViolation, Message: "violates check"}), domain.ErrValidation, false},
		{"username taken", updateProfileError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "profiles_username_uq"}), domain.ErrValidation, false},
		{"profile missing", updateProfileError(pgx.ErrNoRows), domain.ErrNotFound, true},
	}
	for _, tc := range cases {
		if tc.want == nil {
			if errors.Is(tc.err, domain.ErrDuplicateConnection) || errors.Is(tc.err, domain.ErrValidation) {
				t.Fatalf("%s: got %v", tc.name, tc.err)
			}
			var pgerr *pgconn.PgError
			if !errors.As(tc.err, &pgerr) {
				t.Fatalf("%s: driver error lost: %v", tc.name, tc.err)
			}
			continue
		}
		if !errors.Is(tc.err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, tc.err, tc.want)
		}
		if tc.notFound != errors.Is(tc.err, domain.ErrNotFound) {
			t.Fatalf("%s: not found = %v", tc.name, !tc.notFound)
		}
	}
}

func TestSetConnectionStatusOnlyMatchesPendingForReceiver(t *testing.T) {
	q := strings.Join(strings.Fields(setConnectionStatusSQL), " ")
	for _, guard := range []string{"x.id = $1", "x.receiver_id = $2", "x.status = 'pending'"} {
		if !strings.Contains(q, guard) {
			t.Fatalf("query is missing %q: %s", guard, q)
		}
	}
	// No row back means the request was not pending or not addressed to the caller.
	if err := readError("set connection status", pgx.ErrNoRows); err != domain.ErrNotFound {
		t.Fatalf("no row should read as not found, got %v", err)
	}
}

func TestRetryBackoffResetsAfterAttach(t *testing.T) {
	l := &ChangeListener{MinBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// attach on the fifth attempt only; stop after the seventh.
	attempts := 0
	attempt := func(ctx context.Context, attached func()) error {
		attempts++
		if attempts == 5 {
			attached()
		}
		if attempts == 7 {
			cancel()
		}
		return errors.New("connection reset")
	}
	var waits []time.Duration
	wait := func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}

	l.retry(ctx, attempt, wait)

	want := []time.Duration{10, 20, 40, 40, 10, 20}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v", waits)
	}
	for i, ms := range want {
		if waits[i] != ms*time.Millisecond {
			t.Fatalf("wait %d = %s, want %s (all: %v)", i, waits[i], ms*time.Millisecond, waits)
		}
	}
}

func TestRetryStopsWhenWaitIsCancelled(t *testing.T) {
	l := &ChangeListener{}
	calls := 0
	l.retry(context.Background(), func(context.Context, func()) error {
		calls++
		return errors.New("refused")
	}, func(context.Context, time.Duration) bool { return false })
	if calls != 1 {
		t.Fatalf("attempts = %d", calls)
	}
}
