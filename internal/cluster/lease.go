// Package cluster provides a cross-process site-ownership lease, so that
// multiple NightDriverServer processes pointed at the same Redis instance
// never both drive the same physical site. It is entirely optional: when
// no Redis address is configured, every site is owned locally and
// unconditionally.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LeaseTTL bounds how long a held lease survives without renewal; the
// renew interval should be well under this to tolerate a missed tick.
const LeaseTTL = 15 * time.Second

// RenewInterval is how often a held lease is refreshed.
const RenewInterval = 5 * time.Second

const keyPrefix = "nightdriver:site-lease:"

// Lease represents ownership of one site's key, held until Release is
// called or the process dies and the TTL expires.
type Lease struct {
	client  *redis.Client
	key     string
	ownerID string
	log     *zap.SugaredLogger
	cancel  context.CancelFunc
}

// Manager acquires and renews per-site leases against a shared Redis
// instance. A Manager without a Redis client (constructed when no address
// is configured) grants every site unconditionally.
type Manager struct {
	client  *redis.Client
	ownerID string
	log     *zap.SugaredLogger
}

// NewManager connects to addr. Pass an empty addr to disable clustering
// entirely: NewManager then returns a Manager with no Redis client, whose
// TryAcquire always succeeds locally.
func NewManager(addr string, log *zap.SugaredLogger) (*Manager, error) {
	if addr == "" {
		return &Manager{ownerID: uuid.NewString(), log: log}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cluster: connect to redis at %s: %w", addr, err)
	}
	return &Manager{client: client, ownerID: uuid.NewString(), log: log}, nil
}

// TryAcquire attempts to claim siteName. It returns a Lease (which the
// caller must Release on shutdown) and true on success, or false if
// another process already owns the site. When the Manager has no Redis
// client (clustering disabled), acquisition always succeeds and the
// returned Lease does no network I/O.
func (m *Manager) TryAcquire(ctx context.Context, siteName string) (*Lease, bool) {
	if m.client == nil {
		return &Lease{ownerID: m.ownerID, log: m.log}, true
	}

	key := keyPrefix + siteName
	ok, err := m.client.SetNX(ctx, key, m.ownerID, LeaseTTL).Result()
	if err != nil {
		m.log.Warnw("cluster: lease acquire failed, assuming ownership", "site", siteName, "error", err)
		return &Lease{ownerID: m.ownerID, log: m.log}, true
	}
	if !ok {
		m.log.Infow("cluster: site already owned elsewhere", "site", siteName)
		return nil, false
	}

	leaseCtx, cancel := context.WithCancel(context.Background())
	lease := &Lease{client: m.client, key: key, ownerID: m.ownerID, log: m.log, cancel: cancel}
	go lease.renewLoop(leaseCtx)
	return lease, true
}

func (l *Lease) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(RenewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			ok, err := l.client.Expire(renewCtx, l.key, LeaseTTL).Result()
			cancel()
			if err != nil || !ok {
				l.log.Warnw("cluster: lease renewal failed", "key", l.key, "error", err)
			}
		}
	}
}

// Release gives up the lease, deleting its Redis key if this process still
// holds it. Safe to call on a locally-granted (Redis-less) Lease.
func (l *Lease) Release() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Only delete if we still own it: a stale lease whose TTL already
	// expired and was reacquired by another process must not be deleted.
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	if err := script.Run(ctx, l.client, []string{l.key}, l.ownerID).Err(); err != nil {
		l.log.Warnw("cluster: lease release failed", "key", l.key, "error", err)
	}
}
