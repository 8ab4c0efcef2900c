// Package quotas computes quota availability. A quota bounds how many
// positions may be sold across its linked items; committed orders, active
// cart reservations and waiting list entries all count against it.
package quotas

// Usage holds the demand counted against one quota.
type Usage struct {
	// Committed counts order positions in pending or paid orders.
	Committed int
	// Carts counts unexpired cart positions.
	Carts int
	// WaitingList counts waiting list entries for the quota's items.
	WaitingList int
}

// Availability is the result of a quota check.
type Availability struct {
	// Unlimited is true for quotas without a size.
	Unlimited bool
	// Free is the number of positions still sellable. Never negative.
	Free int
}

// Compute returns the availability of a quota of the given size under the
// given usage. size nil means unlimited.
func Compute(size *int, u Usage) Availability {
	if size == nil {
		return Availability{Unlimited: true}
	}
	free := *size - u.Committed - u.Carts - u.WaitingList
	if free < 0 {
		free = 0
	}
	return Availability{Free: free}
}

// Sellable reports whether n more positions fit into the quota.
func (a Availability) Sellable(n int) bool {
	return a.Unlimited || n <= a.Free
}
