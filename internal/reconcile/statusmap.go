package reconcile

import "github.com/jcmexdev/pod-fulfillment/internal/orderstore"

// statusMapping translates the vendor's status vocabulary into the internal
// one. Every status the vendor documents as reachable from its order events
// must have an entry; the table is read-only after init and safe for
// unsynchronized concurrent reads.
var statusMapping = map[string]orderstore.Status{
	"draft":     orderstore.StatusPending,
	"pending":   orderstore.StatusProcessing,
	"confirmed": orderstore.StatusProcessing,
	"inprocess": orderstore.StatusProcessing,
	"onhold":    orderstore.StatusProcessing,
	"partial":   orderstore.StatusProcessing,
	"fulfilled": orderstore.StatusShipped,
	"shipped":   orderstore.StatusShipped,
	"delivered": orderstore.StatusDelivered,
	"cancelled": orderstore.StatusCancelled,
	"canceled":  orderstore.StatusCancelled,
}

// DefaultStatus is where unknown vendor statuses land. Processing is the
// safe choice: the order stays visibly in flight instead of silently
// disappearing into a wrong terminal state.
const DefaultStatus = orderstore.StatusProcessing

// MapStatus translates one vendor status. known is false when the table has
// no entry and the default was applied; callers log those, never drop them.
func MapStatus(vendorStatus string) (status orderstore.Status, known bool) {
	if s, ok := statusMapping[vendorStatus]; ok {
		return s, true
	}
	return DefaultStatus, false
}

// MappedVendorStatuses returns the vendor vocabulary covered by the table.
// Exists for the exhaustiveness test against the vendor's documented set.
func MappedVendorStatuses() []string {
	out := make([]string, 0, len(statusMapping))
	for s := range statusMapping {
		out = append(out, s)
	}
	return out
}
