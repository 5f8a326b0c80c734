// internal/app/features/auditlog/types.go
package auditlog

import "github.com/dalemusser/courierhub/internal/app/store/audit"

type categoryOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication"},
		{Value: audit.CategoryAdmin, Label: "Administration"},
	}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
	}

	adminEvents := []string{
		audit.EventCorporateCreated,
		audit.EventCorporateStatusChanged,
		audit.EventOfficeUserCreated,
		audit.EventOfficeUserUpdated,
		audit.EventRangeAssigned,
		audit.EventRangeDeactivated,
		audit.EventUsageCancelled,
		audit.EventInvoiceGenerated,
		audit.EventInvoicePaid,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		return all
	default:
		return []string{}
	}
}
