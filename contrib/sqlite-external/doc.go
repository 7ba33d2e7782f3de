// Package sqliteexternal carries the optional CGO SQLite driver.
//
// core/sqlite imports it when built with the cgo_sqlite tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/expander
//
// Without the tag expander uses modernc.org/sqlite and needs no C
// toolchain. Catalog databases are small, so the CGO driver only matters
// when it is already part of a build pipeline.
package sqliteexternal
