// Package entity defines the closed set of record kinds the application
// stores. Each kind knows its collection name, its id prefix and its field
// schema; the collection layer underneath stays generic over JSON documents.
package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags a record variant.
type Kind string

const (
	KindCustomer       Kind = "customer"
	KindInvoice        Kind = "invoice"
	KindPurchase       Kind = "purchase"
	KindOldStockItem   Kind = "old_stock_item"
	KindBookingInvoice Kind = "booking_invoice"
	KindMasterEntry    Kind = "master_entry"
)

// Collection names.
const (
	CustomersCollection = "customers"
	InvoicesCollection  = "invoices"
	PurchasesCollection = "purchases"
	OldStockCollection  = "oldStock"
	BookingsCollection  = "bookings"
	MastersCollection   = "masters"
)

// ItemPrefix is used for invoice and purchase line items.
const ItemPrefix = "ITEM"

// Meta carries the fields every record has. Embed it in each variant.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

func (m Meta) RecordID() string { return m.ID }

// Base gives generic code write access to the embedded Meta.
func (m *Meta) Base() *Meta { return m }

// Entity is implemented by every record variant.
type Entity interface {
	Kind() Kind
	RecordID() string
}

// Descriptor describes one kind.
type Descriptor struct {
	Kind       Kind
	Collection string
	Prefix     string
	Schema     map[string]any
	decode     func([]byte) (Entity, error)
}

var descriptors = []Descriptor{
	{KindCustomer, CustomersCollection, "CUST", customerSchema, decodeAs[Customer]},
	{KindInvoice, InvoicesCollection, "INV", invoiceSchema, decodeAs[Invoice]},
	{KindPurchase, PurchasesCollection, "PURCH", purchaseSchema, decodeAs[Purchase]},
	{KindOldStockItem, OldStockCollection, "STOCK", oldStockSchema, decodeAs[OldStockItem]},
	{KindBookingInvoice, BookingsCollection, "BOOK", bookingSchema, decodeAs[BookingInvoice]},
	{KindMasterEntry, MastersCollection, "MST", masterSchema, decodeAs[MasterEntry]},
}

func decodeAs[T Entity](data []byte) (Entity, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Descriptors returns every known kind.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

func ByKind(k Kind) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Kind == k {
			return d, true
		}
	}
	return Descriptor{}, false
}

func ByCollection(collection string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Collection == collection {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Describe returns the descriptor for e's kind. It panics for an
// unregistered kind, which is a programming error.
func Describe(e Entity) Descriptor {
	d, ok := ByKind(e.Kind())
	if !ok {
		panic(fmt.Sprintf("entity: unregistered kind %q", e.Kind()))
	}
	return d
}

// SchemaFor returns the built-in schema of a collection, or nil for
// collections without a registered kind.
func SchemaFor(collection string) map[string]any {
	if d, ok := ByCollection(collection); ok {
		return d.Schema
	}
	return nil
}

// Decode turns a stored JSON document into its typed variant.
func Decode(collection string, data []byte) (Entity, error) {
	d, ok := ByCollection(collection)
	if !ok {
		return nil, fmt.Errorf("no entity kind for collection %q", collection)
	}
	return d.decode(data)
}
