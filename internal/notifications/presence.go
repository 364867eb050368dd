package notifications

import (
	"context"
	"strconv"
	"sync"
	"time"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey   = "ws:online"
	presenceHeartbeatNS    = "ws:heartbeat:"
	presenceLastSeenNS     = "ws:last_seen:"
	presenceHeartbeatTTL   = 90 * time.Second
	presenceLastSeenMaxAge = 30 * 24 * time.Hour
)

// Presence is the registry entry of an online participant.
type Presence struct {
	ParticipantID uuid.UUID
	Role          models.Role
	SessionID     string
	ConnectedAt   time.Time
}

// OnlineRegistry maps each participant to its most recent session. A newer
// session replaces an older one; removing an entry only succeeds for the
// session that owns it. Entries are mirrored to Redis so other processes can
// answer online checks.
type OnlineRegistry struct {
	rdb *redis.Client

	mu      sync.RWMutex
	entries map[uuid.UUID]Presence
}

// NewOnlineRegistry creates a registry. rdb may be nil.
func NewOnlineRegistry(rdb *redis.Client) *OnlineRegistry {
	return &OnlineRegistry{rdb: rdb, entries: make(map[uuid.UUID]Presence)}
}

// Register records p as the participant's current session and reports whether
// the participant already had one.
func (r *OnlineRegistry) Register(ctx context.Context, p Presence) bool {
	if p.ConnectedAt.IsZero() {
		p.ConnectedAt = time.Now().UTC()
	}
	r.mu.Lock()
	_, replaced := r.entries[p.ParticipantID]
	r.entries[p.ParticipantID] = p
	r.mu.Unlock()

	r.Touch(ctx, p.ParticipantID)
	return replaced
}

// releaseHeartbeat deletes the heartbeat and the online-set membership only
// while the heartbeat still names the releasing session.
var releaseHeartbeat = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// Touch refreshes the participant's Redis heartbeat. The heartbeat holds the
// id of the local session that owns it.
func (r *OnlineRegistry) Touch(ctx context.Context, participantID uuid.UUID) {
	if r.rdb == nil {
		return
	}
	p, ok := r.Lookup(participantID)
	if !ok {
		return
	}
	id := participantID.String()
	now := strconv.FormatInt(time.Now().Unix(), 10)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, presenceOnlineSetKey, id)
		pipe.SetEx(ctx, presenceHeartbeatNS+id, p.SessionID, presenceHeartbeatTTL)
		pipe.SetEx(ctx, presenceLastSeenNS+id, now, presenceLastSeenMaxAge)
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "presence touch failed", "participant_id", id, "error", err)
	}
}

// Unregister removes the participant's entry if it still belongs to sessionID
// and reports whether it did.
func (r *OnlineRegistry) Unregister(ctx context.Context, participantID uuid.UUID, sessionID string) bool {
	r.mu.Lock()
	p, ok := r.entries[participantID]
	if !ok || p.SessionID != sessionID {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, participantID)
	r.mu.Unlock()

	if r.rdb != nil {
		id := participantID.String()
		now := strconv.FormatInt(time.Now().Unix(), 10)
		keys := []string{presenceHeartbeatNS + id, presenceOnlineSetKey}
		err := releaseHeartbeat.Run(ctx, r.rdb, keys, sessionID, id).Err()
		if err == nil {
			err = r.rdb.SetEx(ctx, presenceLastSeenNS+id, now, presenceLastSeenMaxAge).Err()
		}
		if err != nil {
			middleware.Logger.WarnContext(ctx, "presence removal failed", "participant_id", id, "error", err)
		}
	}
	return true
}

// IsOnline reports whether the participant has a session here or, with Redis,
// a live heartbeat from any process.
func (r *OnlineRegistry) IsOnline(ctx context.Context, participantID uuid.UUID) bool {
	r.mu.RLock()
	_, ok := r.entries[participantID]
	r.mu.RUnlock()
	if ok || r.rdb == nil {
		return ok
	}

	n, err := r.rdb.Exists(ctx, presenceHeartbeatNS+participantID.String()).Result()
	return err == nil && n > 0
}

// Lookup returns the local entry for a participant.
func (r *OnlineRegistry) Lookup(participantID uuid.UUID) (Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[participantID]
	return p, ok
}

// LastSeen returns when the participant was last active on any process.
func (r *OnlineRegistry) LastSeen(ctx context.Context, participantID uuid.UUID) (time.Time, bool) {
	if r.rdb == nil {
		return time.Time{}, false
	}
	raw, err := r.rdb.Get(ctx, presenceLastSeenNS+participantID.String()).Result()
	if err != nil {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// Count returns the number of participants online on this process.
func (r *OnlineRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
