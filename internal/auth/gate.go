package auth

import "github.com/orderdesk/orderdesk/internal/domain"

// Operation names a guarded action. The gate is a static table: admins can do
// everything, regular users place and inspect their own orders.
type Operation string

const (
	OpPlaceOrder     Operation = "place_order"
	OpEditOrder      Operation = "edit_order"
	OpDeleteOrder    Operation = "delete_order"
	OpSetOrderStatus Operation = "set_order_status"
	OpManageCatalog  Operation = "manage_catalog"
	OpViewAllOrders  Operation = "view_all_orders"
	OpViewOwnOrders  Operation = "view_own_orders"
	OpViewReports    Operation = "view_reports"
)

var userOps = map[Operation]bool{
	OpPlaceOrder:    true,
	OpViewOwnOrders: true,
}

// Allowed reports whether role may perform op. Unknown roles may do nothing.
func Allowed(role domain.Role, op Operation) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return userOps[op]
	default:
		return false
	}
}
