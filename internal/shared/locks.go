package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates the invoice lock is currently owned by someone else.
var ErrLockHeld = errors.New("invoice lock held")

// InvoiceLockKey builds redis keys for invoice-scoped critical sections.
// Allocation against one invoice's installments must serialize; two
// concurrently verified payments would otherwise race on paid_amount.
func InvoiceLockKey(invoiceID int64) string {
	return fmt.Sprintf("billing:invoice:%d:alloc", invoiceID)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// InvoiceLocker serializes allocation runs per invoice via redis.
type InvoiceLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewInvoiceLocker constructs an InvoiceLocker. The TTL bounds how long a
// crashed holder can block other verifications.
func NewInvoiceLocker(client *redis.Client, ttl time.Duration) *InvoiceLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &InvoiceLocker{client: client, ttl: ttl}
}

// Acquire takes the lock for the given invoice and returns a release func.
// Returns ErrLockHeld when another allocation is in flight.
func (l *InvoiceLocker) Acquire(ctx context.Context, invoiceID int64) (func(), error) {
	key := InvoiceLockKey(invoiceID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire invoice lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
