package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusconnect/internal/domain"
)

type ConnectionsStore struct {
	pool *pgxpool.Pool
}

func NewConnectionsStore(pool *pgxpool.Pool) *ConnectionsStore {
	return &ConnectionsStore{pool: pool}
}

const connectionCols = `x.id, x.requester_id, x.receiver_id, x.status, x.created_at, x.updated_at`

func connectionDest(c *domain.Connection, id, requester, receiver *pgtype.UUID, status *string) []any {
	return []any{id, requester, receiver, status, &c.CreatedAt, &c.UpdatedAt}
}

func scanConnection(row rowScanner) (domain.Connection, error) {
	var (
		c                       domain.Connection
		id, requester, receiver pgtype.UUID
		status                  string
	)
	if err := row.Scan(connectionDest(&c, &id, &requester, &receiver, &status)...); err != nil {
		return domain.Connection{}, err
	}
	c.ID = uuidOrEmpty(id)
	c.RequesterID = uuidOrEmpty(requester)
	c.ReceiverID = uuidOrEmpty(receiver)
	c.Status = domain.ConnectionStatus(status)
	return c, nil
}

// The view queries take the viewer as $1 and join the other participant.
const connectionViewFrom = `
	FROM connections x
	LEFT JOIN profiles p
	  ON p.id = CASE WHEN x.requester_id = $1 THEN x.receiver_id ELSE x.requester_id END
`

func scanConnectionView(row rowScanner, viewerID string) (domain.ConnectionView, error) {
	var (
		v                       domain.ConnectionView
		id, requester, receiver pgtype.UUID
		status                  string
		other                   summaryScan
	)
	dest := append(connectionDest(&v.Connection, &id, &requester, &receiver, &status), other.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.ConnectionView{}, err
	}
	v.ID = uuidOrEmpty(id)
	v.RequesterID = uuidOrEmpty(requester)
	v.ReceiverID = uuidOrEmpty(receiver)
	v.Status = domain.ConnectionStatus(status)
	v.Counterpart = other.summary(v.Other(viewerID))
	return v, nil
}

func (s *ConnectionsStore) FindConnection(ctx context.Context, a, b string) (domain.Connection, error) {
	const q = `
		SELECT ` + connectionCols + `
		FROM connections x
		WHERE (x.requester_id = $1 AND x.receiver_id = $2)
		   OR (x.requester_id = $2 AND x.receiver_id = $1)
	`
	c, err := scanConnection(s.pool.QueryRow(ctx, q, a, b))
	if err != nil {
		return domain.Connection{}, readError("find connection", err)
	}
	return c, nil
}

func (s *ConnectionsStore) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	const q = `SELECT ` + connectionCols + ` FROM connections x WHERE x.id = $1`
	c, err := scanConnection(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.Connection{}, readError("get connection", err)
	}
	return c, nil
}

func (s *ConnectionsStore) ListConnections(ctx context.Context, userID string) ([]domain.ConnectionView, error) {
	const q = `
		SELECT ` + connectionCols + `, ` + summaryCols + connectionViewFrom + `
		WHERE x.requester_id = $1 OR x.receiver_id = $1
		ORDER BY x.created_at DESC
	`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	out := []domain.ConnectionView{}
	for rows.Next() {
		v, err := scanConnectionView(rows, userID)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return out, nil
}

func (s *ConnectionsStore) GetConnectionView(ctx context.Context, id, viewerID string) (domain.ConnectionView, error) {
	const q = `
		SELECT ` + connectionCols + `, ` + summaryCols + connectionViewFrom + `
		WHERE x.id = $2
	`
	v, err := scanConnectionView(s.pool.QueryRow(ctx, q, viewerID, id), viewerID)
	if err != nil {
		return domain.ConnectionView{}, readError("get connection", err)
	}
	return v, nil
}

func (s *ConnectionsStore) InsertConnection(ctx context.Context, in domain.NewConnection) (domain.Connection, error) {
	const q = `
		INSERT INTO connections AS x (requester_id, receiver_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING ` + connectionCols
	c, err := scanConnection(s.pool.QueryRow(ctx, q, in.RequesterID, in.ReceiverID))
	if err != nil {
		return domain.Connection{}, insertConnectionError(err)
	}
	return c, nil
}

// insertConnectionError reports a second request between the same pair as
// ErrDuplicateConnection, whichever side sent the first one.
func insertConnectionError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == codeUniqueViolation && pgerr.ConstraintName == "connections_pair_uq" {
		return domain.ErrDuplicateConnection
	}
	return writeError("insert connection", err)
}

// setConnectionStatusSQL only matches a pending request addressed to the
// caller, so anything else reads as not found.
const setConnectionStatusSQL = `
		UPDATE connections AS x
		SET status = $3, updated_at = now()
		WHERE x.id = $1 AND x.receiver_id = $2 AND x.status = 'pending'
		RETURNING ` + connectionCols

func (s *ConnectionsStore) SetConnectionStatus(ctx context.Context, id, receiverID string, status domain.ConnectionStatus) (domain.Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx, setConnectionStatusSQL, id, receiverID, string(status)))
	if err != nil {
		return domain.Connection{}, readError("set connection status", err)
	}
	return c, nil
}
