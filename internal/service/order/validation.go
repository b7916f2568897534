package order

import (
	"strings"
	"time"
)

// Validation messages returned to clients, one per failing field.
const (
	MsgCustomerNameRequired    = "Customer name is required"
	MsgShippingAddressRequired = "Shipping address is required"
	MsgTotalPositive           = "Total must be positive"
	MsgOrderDateFormat         = "Order date must be formatted as YYYY-MM-DD"
)

// validate collects every failing field message. The order date is only
// inspected when withDate is set; the parsed value is zero when absent.
func validate(in Input, withDate bool) (time.Time, []string) {
	var msgs []string
	if strings.TrimSpace(in.CustomerName) == "" {
		msgs = append(msgs, MsgCustomerNameRequired)
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		msgs = append(msgs, MsgShippingAddressRequired)
	}
	// written as a negation so NaN fails too
	if !(in.Total > 0) {
		msgs = append(msgs, MsgTotalPositive)
	}

	var orderDate time.Time
	if withDate && strings.TrimSpace(in.OrderDate) != "" {
		parsed, err := parseDate(in.OrderDate)
		if err != nil {
			msgs = append(msgs, MsgOrderDateFormat)
		} else {
			orderDate = parsed
		}
	}
	return orderDate, msgs
}
