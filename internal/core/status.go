package core

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusApproved  OrderStatus = "approved"
	StatusAccepted  OrderStatus = "accepted"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCompleted OrderStatus = "completed"
	StatusRejected  OrderStatus = "rejected"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusAccepted, StatusShipped,
		StatusDelivered, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Event is a requested lifecycle change.
type Event string

const (
	EventApprove         Event = "approve"
	EventReject          Event = "reject"
	EventAccept          Event = "accept"
	EventShip            Event = "ship"
	EventDeliver         Event = "deliver"
	EventComplete        Event = "complete"
	EventConfirmDelivery Event = "confirm_delivery"
	EventCancel          Event = "cancel"
)

// party is who may fire an event: the order's pharmacy or its patient.
type party int

const (
	owningPharmacy party = iota
	owningPatient
)

func (p party) String() string {
	if p == owningPatient {
		return "owning patient"
	}
	return "owning pharmacy"
}

type transition struct {
	from  []OrderStatus
	actor party
	to    OrderStatus
	// noop lists statuses where the event succeeds without any effect.
	noop []OrderStatus
}

var transitions = map[Event]transition{
	EventApprove: {
		from:  []OrderStatus{StatusPending},
		actor: owningPharmacy,
		to:    StatusApproved,
		noop:  []OrderStatus{StatusApproved},
	},
	EventReject: {
		from:  []OrderStatus{StatusPending, StatusApproved},
		actor: owningPharmacy,
		to:    StatusRejected,
	},
	EventAccept: {
		from:  []OrderStatus{StatusApproved},
		actor: owningPatient,
		to:    StatusAccepted,
	},
	EventShip: {
		from:  []OrderStatus{StatusApproved, StatusAccepted},
		actor: owningPharmacy,
		to:    StatusShipped,
	},
	EventDeliver: {
		from:  []OrderStatus{StatusShipped},
		actor: owningPharmacy,
		to:    StatusDelivered,
	},
	EventComplete: {
		from:  []OrderStatus{StatusShipped, StatusApproved, StatusDelivered},
		actor: owningPharmacy,
		to:    StatusCompleted,
		noop:  []OrderStatus{StatusCompleted},
	},
	EventConfirmDelivery: {
		from:  []OrderStatus{StatusShipped, StatusDelivered, StatusCompleted},
		actor: owningPatient,
		to:    StatusCompleted,
	},
	EventCancel: {
		from:  []OrderStatus{StatusPending, StatusApproved},
		actor: owningPatient,
		to:    StatusCancelled,
	},
}

// CanTransition reports whether event is allowed (or a no-op) from status.
func CanTransition(status OrderStatus, event Event) bool {
	t, ok := transitions[event]
	if !ok {
		return false
	}
	return containsStatus(t.from, status) || containsStatus(t.noop, status)
}

func containsStatus(list []OrderStatus, s OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
