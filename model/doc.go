// Package model defines the shared value types of the catalog:
// products, search results and listing pages.
//
// It sits at the bottom of the dependency graph so both the composite
// catalog and the ingestion pipeline can exchange records without cycles.
package model
