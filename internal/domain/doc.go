// Package domain models e-commerce order demand and the preparation steps that
// turn raw marketplace exports into a per-city demand table.
//
// # Data Source
//
// Inputs follow the layout of the Brazilian Olist marketplace public dataset:
// one table of customers, one of orders, one of payments. Each table is a
// delimited text file (or spreadsheet) with a header row. Only a handful of
// columns matter here; everything else is carried through untouched so that
// duplicate detection still sees the whole row.
//
// Required columns:
//
//	customers: customer_id, customer_city, customer_state
//	orders:    order_id, customer_id
//	payments:  order_id, payment_value
//
// A missing column is a [SchemaError]. An empty cell in a required column drops
// the row.
//
// # Payments
//
// An order paid in installments, or with a voucher plus a card, has one payment
// row per payment_sequential. Rows are summed per order_id before any join so
// an order is never counted once per installment.
//
// # City names
//
// customer_city is free text typed by shoppers: "São Paulo", "sao paulo" and
// "SAO PAULO " all refer to the same place. [NormalizeCity] decomposes the
// string (NFKD), strips combining marks, drops leftover non-ASCII runes,
// lowercases and collapses whitespace:
//
//	"São Paulo"        → "sao paulo"
//	"Ribeirão  Preto"  → "ribeirao preto"
//	"MOGI DAS CRUZES"  → "mogi das cruzes"
//
// # Region filter
//
// customer_state holds the two-letter Brazilian state code (SP, RJ, MG, ...).
// The target region is configuration; comparison is on trimmed, upper-cased
// codes.
//
// # Geocoding
//
// Coordinates come from a static city table supplied by configuration. Cities
// missing from the table are excluded under an [ExclusionPolicy]; under the
// default policy the excluded demand is reported as a [DataLossWarning].
package domain
