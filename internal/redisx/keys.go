package redisx

import (
	"fmt"
	"time"
)

const keyOrderDetail = "order:detail:%d"

// TTLOrderCache bounds staleness of cached order reads. Mutations also
// invalidate eagerly, so the TTL only covers writers outside this process.
var TTLOrderCache = 5 * time.Minute

// OrderDetailKey is the cache slot for one order's full read model.
func OrderDetailKey(orderID int64) string {
	return fmt.Sprintf(keyOrderDetail, orderID)
}
