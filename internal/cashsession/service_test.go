package cashsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	sessions []Session
	nextID   int64
}

func (m *memoryStore) Insert(ctx context.Context, sess Session) (int64, error) {
	m.nextID++
	sess.ID = m.nextID
	m.sessions = append(m.sessions, sess)
	return sess.ID, nil
}

func (m *memoryStore) FindOpenByUser(ctx context.Context, userID int64) (*Session, error) {
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].UserID == userID && m.sessions[i].Status == StatusOpen {
			sess := m.sessions[i]
			return &sess, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Close(ctx context.Context, sessionID int64, declaredAmount float64, closedAt time.Time) error {
	for i := range m.sessions {
		if m.sessions[i].ID == sessionID {
			m.sessions[i].Status = StatusClosed
			m.sessions[i].DeclaredAmount = declaredAmount
			m.sessions[i].ClosedAt = closedAt
		}
	}
	return nil
}

func TestOpenCloseLifecycle(t *testing.T) {
	svc := NewService(&memoryStore{}, nil, nil)
	ctx := context.Background()

	sess, err := svc.Open(ctx, 1, 150)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, sess.Status)
	require.InDelta(t, 150.0, sess.OpeningAmount, 0.0001)

	current, err := svc.CurrentOpen(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, sess.ID, current.ID)

	closed, err := svc.Close(ctx, 1, 975.50)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.InDelta(t, 975.50, closed.DeclaredAmount, 0.0001)

	current, err = svc.CurrentOpen(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, current)
}

func TestOpenTwiceRejected(t *testing.T) {
	svc := NewService(&memoryStore{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Open(ctx, 1, 100)
	require.NoError(t, err)

	_, err = svc.Open(ctx, 1, 200)
	require.ErrorIs(t, err, ErrSessionAlreadyOpen)

	// A different user is unaffected.
	_, err = svc.Open(ctx, 2, 50)
	require.NoError(t, err)
}

func TestCloseWithoutOpen(t *testing.T) {
	svc := NewService(&memoryStore{}, nil, nil)
	_, err := svc.Close(context.Background(), 9, 0)
	require.ErrorIs(t, err, ErrNoOpenSession)
}

func TestNegativeAmounts(t *testing.T) {
	svc := NewService(&memoryStore{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Open(ctx, 1, -1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Open(ctx, 1, 0)
	require.NoError(t, err)
	_, err = svc.Close(ctx, 1, -5)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
