package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Customer struct {
	Meta
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

func (Customer) Kind() Kind { return KindCustomer }

// LineItem is one row of an invoice, purchase or booking. TaxRate is a percentage.
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	Amount      decimal.Decimal `json:"amount"`
}

func (li LineItem) net() decimal.Decimal { return li.Quantity.Mul(li.UnitPrice) }

func (li LineItem) tax() decimal.Decimal { return li.net().Mul(li.TaxRate).Div(hundred) }

// sumItems refreshes every item's Amount and returns (net, tax) totals rounded to cents.
func sumItems(items []LineItem) (decimal.Decimal, decimal.Decimal) {
	net, tax := decimal.Zero, decimal.Zero
	for i := range items {
		items[i].Amount = items[i].net().Round(2)
		net = net.Add(items[i].net())
		tax = tax.Add(items[i].tax())
	}
	return net.Round(2), tax.Round(2)
}

type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "draft"
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
)

type Invoice struct {
	Meta
	Number       string          `json:"number"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName,omitempty"`
	Date         time.Time       `json:"date"`
	Items        []LineItem      `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	Status       InvoiceStatus   `json:"status"`
	PaymentMode  string          `json:"paymentMode,omitempty"`
}

func (Invoice) Kind() Kind { return KindInvoice }

// Recalculate refreshes item amounts, subtotal, tax and total.
func (inv *Invoice) Recalculate() {
	inv.Subtotal, inv.Tax = sumItems(inv.Items)
	inv.Total = inv.Subtotal.Add(inv.Tax).Sub(inv.Discount)
}

type Purchase struct {
	Meta
	SupplierName string          `json:"supplierName"`
	BillNumber   string          `json:"billNumber,omitempty"`
	Date         time.Time       `json:"date"`
	Items        []LineItem      `json:"items"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Notes        string          `json:"notes,omitempty"`
}

func (Purchase) Kind() Kind { return KindPurchase }

func (p *Purchase) Recalculate() {
	net, tax := sumItems(p.Items)
	p.Tax = tax
	p.Total = net.Add(tax)
}

// Due is what is still owed to the supplier.
func (p Purchase) Due() decimal.Decimal { return p.Total.Sub(p.Paid) }

// OldStockItem is inventory carried over from before the books were kept here.
type OldStockItem struct {
	Meta
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	Supplier string          `json:"supplier,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unitCost"`
	Location string          `json:"location,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

func (OldStockItem) Kind() Kind { return KindOldStockItem }

func (o OldStockItem) Value() decimal.Decimal { return o.Quantity.Mul(o.UnitCost).Round(2) }

type BookingStatus string

const (
	BookingOpen      BookingStatus = "open"
	BookingDelivered BookingStatus = "delivered"
	BookingCancelled BookingStatus = "cancelled"
)

// BookingInvoice is an order taken with an advance and delivered later.
type BookingInvoice struct {
	Meta
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName,omitempty"`
	BookingDate  time.Time       `json:"bookingDate"`
	DeliveryDate time.Time       `json:"deliveryDate,omitzero"`
	Items        []LineItem      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Advance      decimal.Decimal `json:"advance"`
	Balance      decimal.Decimal `json:"balance"`
	Status       BookingStatus   `json:"status"`
}

func (BookingInvoice) Kind() Kind { return KindBookingInvoice }

func (b *BookingInvoice) Recalculate() {
	net, tax := sumItems(b.Items)
	b.Total = net.Add(tax)
	b.Balance = b.Total.Sub(b.Advance)
}

// Well-known master types. The set is open: any non-empty type is accepted.
const (
	MasterCategory = "category"
	MasterSupplier = "supplier"
	MasterUnit     = "unit"
)

// MasterEntry is one value of a tagged lookup list.
type MasterEntry struct {
	Meta
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (MasterEntry) Kind() Kind { return KindMasterEntry }
