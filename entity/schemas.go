package entity

var (
	str      = map[string]any{"type": "string"}
	dateTime = map[string]any{"type": "string", "format": "date-time"}
	money    = map[string]any{"type": []any{"string", "number"}, "format": "decimal"}
	nonEmpty = map[string]any{"type": "string", "minLength": float64(1)}
)

var lineItemSchema = map[string]any{
	"type":     "object",
	"required": []any{"id", "quantity", "unitPrice"},
	"properties": map[string]any{
		"id":          nonEmpty,
		"description": str,
		"category":    str,
		"quantity":    money,
		"unitPrice":   money,
		"taxRate":     money,
		"amount":      money,
	},
}

var lineItems = map[string]any{"type": []any{"array", "null"}, "items": lineItemSchema}

// record builds an object schema with the shared id and timestamp fields.
func record(required []string, props map[string]any) map[string]any {
	all := map[string]any{
		"id":        nonEmpty,
		"createdAt": dateTime,
		"updatedAt": dateTime,
	}
	for k, v := range props {
		all[k] = v
	}
	req := []any{"id"}
	for _, r := range required {
		req = append(req, r)
	}
	return map[string]any{"type": "object", "required": req, "properties": all}
}

var customerSchema = record([]string{"name"}, map[string]any{
	"name":    nonEmpty,
	"phone":   map[string]any{"type": "string", "pattern": `^[0-9+() -]*$`},
	"email":   str,
	"address": str,
	"taxId":   str,
	"notes":   str,
})

var invoiceSchema = record([]string{"customerId"}, map[string]any{
	"number":       str,
	"customerId":   nonEmpty,
	"customerName": str,
	"date":         dateTime,
	"items":        lineItems,
	"subtotal":     money,
	"tax":          money,
	"discount":     money,
	"total":        money,
	"status":       map[string]any{"enum": []any{"", "draft", "issued", "paid"}},
	"paymentMode":  str,
})

var purchaseSchema = record([]string{"supplierName"}, map[string]any{
	"supplierName": nonEmpty,
	"billNumber":   str,
	"date":         dateTime,
	"items":        lineItems,
	"tax":          money,
	"total":        money,
	"paid":         money,
	"notes":        str,
})

var oldStockSchema = record([]string{"name"}, map[string]any{
	"name":     nonEmpty,
	"category": str,
	"supplier": str,
	"quantity": money,
	"unitCost": money,
	"location": str,
	"notes":    str,
})

var bookingSchema = record([]string{"customerId"}, map[string]any{
	"customerId":   nonEmpty,
	"customerName": str,
	"bookingDate":  dateTime,
	"deliveryDate": dateTime,
	"items":        lineItems,
	"total":        money,
	"advance":      money,
	"balance":      money,
	"status":       map[string]any{"enum": []any{"", "open", "delivered", "cancelled"}},
})

var masterSchema = record([]string{"type", "value"}, map[string]any{
	"type":  nonEmpty,
	"value": nonEmpty,
})
