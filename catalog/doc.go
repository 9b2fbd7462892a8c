// Package catalog holds the record store domain types shared by the listing,
// write and transport layers: records, orders, their enumerated tags and the
// filter parameters accepted by the listing query.
package catalog
