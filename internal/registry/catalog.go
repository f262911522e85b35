package registry

import "github.com/gridmate/fieldsync/internal/fieldsync"

// BuiltinCatalog is the fallback field list used when no catalog document
// can be loaded. Keys and external keys follow the lookup service's order
// payload.
func BuiltinCatalog() []fieldsync.FieldSpec {
	return []fieldsync.FieldSpec{
		{Key: "order_status", DisplayName: "Order Status", ExternalKey: "status", Category: fieldsync.CategoryBasic, Checked: true},
		{Key: "item_count", DisplayName: "Item Count", ExternalKey: "itemCount", Category: fieldsync.CategoryBasic},
		{Key: "recipient_name", DisplayName: "Recipient", ExternalKey: "recipientName", Category: fieldsync.CategoryContact, Checked: true},
		{Key: "recipient_phone", DisplayName: "Recipient Phone", ExternalKey: "recipientPhone", Category: fieldsync.CategoryContact},
		{Key: "carrier", DisplayName: "Carrier", ExternalKey: "carrier", Category: fieldsync.CategoryLogistics, Checked: true},
		{Key: "tracking_number", DisplayName: "Tracking Number", ExternalKey: "trackingNumber", Category: fieldsync.CategoryLogistics, Checked: true},
		{Key: "delivery_address", DisplayName: "Delivery Address", ExternalKey: "deliveryAddress", Category: fieldsync.CategoryLogistics},
		{Key: "shipped_at", DisplayName: "Shipped At", ExternalKey: "shippedAt", Category: fieldsync.CategoryTimeline},
		{Key: "delivered_at", DisplayName: "Delivered At", ExternalKey: "deliveredAt", Category: fieldsync.CategoryTimeline},
	}
}
