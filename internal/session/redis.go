package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so multiple API replicas share the
// one-active-session-per-course invariant.
//
// Layout per session:
//
//	qr:course:{courseID} -> token of the active session (SET NX, TTL)
//	qr:session:{token}   -> hash with course_id, issued_at, expires_at, status
//	qr:scans:{token}     -> sorted set of student ids scored by scan time
//
// Key TTLs double as the cleanup sweep; correctness still comes from the
// lazy expires_at check on every read.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func courseKey(courseID string) string { return "qr:course:" + courseID }
func sessKey(token string) string      { return "qr:session:" + token }
func scansKey(token string) string     { return "qr:scans:" + token }

// retention past expiry so closed/expired sessions stay readable for a
// final poll before Redis reclaims them.
const linger = 30 * time.Minute

// Open claims the course key with SET NX; the loser of a concurrent open
// reads the winner's token, so both callers end up on the same session.
func (s *RedisStore) Open(ctx context.Context, courseID string, ttl time.Duration) (Session, bool, error) {
	now := s.now()
	token, err := NewToken()
	if err != nil {
		return Session{}, false, err
	}

	claimed, err := s.client.SetNX(ctx, courseKey(courseID), token, ttl).Result()
	if err != nil {
		return Session{}, false, fmt.Errorf("claim course session: %w", err)
	}
	if !claimed {
		existing, err := s.Active(ctx, courseID)
		if err != nil {
			return Session{}, false, err
		}
		if existing != nil {
			return *existing, true, nil
		}
		// Course key held by a session that just expired or closed;
		// drop it and claim again.
		s.client.Del(ctx, courseKey(courseID))
		return s.Open(ctx, courseID, ttl)
	}

	sess := Session{
		CourseID:  courseID,
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Status:    StatusActive,
	}
	err = s.client.HSet(ctx, sessKey(token), map[string]interface{}{
		"course_id":  sess.CourseID,
		"issued_at":  sess.IssuedAt.Format(time.RFC3339Nano),
		"expires_at": sess.ExpiresAt.Format(time.RFC3339Nano),
		"status":     string(StatusActive),
	}).Err()
	if err != nil {
		return Session{}, false, fmt.Errorf("store session: %w", err)
	}
	s.client.Expire(ctx, sessKey(token), ttl+linger)
	return sess, false, nil
}

// Active resolves the course key and returns its session if still active.
func (s *RedisStore) Active(ctx context.Context, courseID string) (*Session, error) {
	token, err := s.client.Get(ctx, courseKey(courseID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.ByToken(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Status != StatusActive {
		return nil, nil
	}
	return sess, nil
}

// ByToken loads a session hash, applying lazy expiry.
func (s *RedisStore) ByToken(ctx context.Context, token string) (*Session, error) {
	fields, err := s.client.HGetAll(ctx, sessKey(token)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	issued, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("bad issued_at for %s: %w", token, err)
	}
	expires, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("bad expires_at for %s: %w", token, err)
	}
	sess := &Session{
		CourseID:  fields["course_id"],
		Token:     token,
		IssuedAt:  issued,
		ExpiresAt: expires,
		Status:    Status(fields["status"]),
	}
	if sess.Status == StatusActive && s.now().After(sess.ExpiresAt) {
		sess.Status = StatusExpired
	}
	return sess, nil
}

// Close marks the session closed and releases the course key.
func (s *RedisStore) Close(ctx context.Context, token string) error {
	sess, err := s.ByToken(ctx, token)
	if err != nil || sess == nil {
		return err
	}
	if sess.Status == StatusActive {
		if err := s.client.HSet(ctx, sessKey(token), "status", string(StatusClosed)).Err(); err != nil {
			return err
		}
	}
	held, err := s.client.Get(ctx, courseKey(sess.CourseID)).Result()
	if err == nil && held == token {
		s.client.Del(ctx, courseKey(sess.CourseID))
	}
	return nil
}

// RecordScan relies on ZADD NX for the atomic at-most-once admission:
// exactly one of two concurrent adds for the same student reports 1.
func (s *RedisStore) RecordScan(ctx context.Context, token, studentID string) (bool, error) {
	sess, err := s.ByToken(ctx, token)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.Status != StatusActive {
		return false, ErrNotActive
	}
	now := s.now()
	added, err := s.client.ZAddNX(ctx, scansKey(token), redis.Z{
		Score:  float64(now.UnixNano()),
		Member: studentID,
	}).Result()
	if err != nil {
		return false, err
	}
	if added == 1 {
		s.client.Expire(ctx, scansKey(token), time.Until(sess.ExpiresAt)+linger)
	}
	return added == 0, nil
}

// ScanCount returns the size of the scan set.
func (s *RedisStore) ScanCount(ctx context.Context, token string) (int, error) {
	n, err := s.client.ZCard(ctx, scansKey(token)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Scans returns scans ordered by scan time.
func (s *RedisStore) Scans(ctx context.Context, token string) ([]Scan, error) {
	members, err := s.client.ZRangeWithScores(ctx, scansKey(token), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Scan, 0, len(members))
	for _, m := range members {
		id, _ := m.Member.(string)
		out = append(out, Scan{
			StudentID: id,
			ScannedAt: time.Unix(0, int64(m.Score)),
		})
	}
	return out, nil
}
