// Package store records session lifecycle events to SQLite so cookie
// state and renewal history survive the crawl process for inspection.
package store
