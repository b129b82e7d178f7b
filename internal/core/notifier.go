package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// Notifier delivers notifications. Delivery is best effort: services log
// a returned error and carry on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Notification verbs.
const (
	VerbOrderPlaced              = "order_placed"
	VerbOrderApproved            = "order_approved"
	VerbOrderRejected            = "order_rejected"
	VerbApprovalAccepted         = "approval_accepted"
	VerbOrderShipped             = "order_shipped"
	VerbOrderDelivered           = "order_delivered"
	VerbOrderCompletedByPharmacy = "order_completed_by_pharmacy"
	VerbOrderConfirmedReceived   = "order_confirmed_received"
	VerbOrderCancelled           = "order_cancelled"
)

// notificationFor builds the message sent after event moved order to its
// new status. actorName is the display name of whoever fired the event.
// ok is false when there is nobody to tell.
func notificationFor(event Event, order *Order, actorName string) (n Notification, ok bool) {
	patient := 0
	if order.PatientID != nil {
		patient = *order.PatientID
	}

	var recipient int
	var verb, msg string
	switch event {
	case EventApprove:
		recipient, verb = patient, VerbOrderApproved
		msg = fmt.Sprintf("Your order #%d has been approved by %s", order.ID, actorName)
	case EventReject:
		recipient, verb = patient, VerbOrderRejected
		msg = fmt.Sprintf("Your order #%d has been rejected by %s", order.ID, actorName)
	case EventAccept:
		recipient, verb = order.PharmacyID, VerbApprovalAccepted
		msg = fmt.Sprintf("%s accepted the approval of order #%d", actorName, order.ID)
	case EventShip:
		recipient, verb = patient, VerbOrderShipped
		msg = fmt.Sprintf("Your order #%d has been shipped by %s", order.ID, actorName)
	case EventDeliver:
		recipient, verb = patient, VerbOrderDelivered
		msg = fmt.Sprintf("Your order #%d has been delivered by %s", order.ID, actorName)
	case EventComplete:
		recipient, verb = patient, VerbOrderCompletedByPharmacy
		msg = fmt.Sprintf("Your order #%d has been marked completed by %s", order.ID, actorName)
	case EventConfirmDelivery:
		recipient, verb = order.PharmacyID, VerbOrderConfirmedReceived
		msg = fmt.Sprintf("%s confirmed receipt of order #%d", actorName, order.ID)
	case EventCancel:
		recipient, verb = order.PharmacyID, VerbOrderCancelled
		msg = fmt.Sprintf("%s cancelled order #%d", actorName, order.ID)
	default:
		return Notification{}, false
	}
	if recipient == 0 {
		return Notification{}, false
	}

	return Notification{RecipientID: recipient, Verb: verb, Message: msg, Data: orderPayload(order)}, true
}

// orderPayload is the Data attached to every order notification.
func orderPayload(order *Order) json.RawMessage {
	data, _ := json.Marshal(struct {
		OrderID int         `json:"order_id"`
		Status  OrderStatus `json:"status"`
	}{order.ID, order.Status})
	return data
}
