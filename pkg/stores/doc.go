// Package stores persists executed runs, their steps and their provenance
// documents in SQLite. The schema is applied from embedded migrations.
package stores
