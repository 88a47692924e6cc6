package store

// schemaVersion is bumped whenever the table layout changes in a way
// that isn't safely migratable. Every dataset is externally sourced, so
// a version mismatch (or any missing expected table) just resets and
// re-ingests instead of running a migration (spec.md §3.2, Non-goals).
const schemaVersion = "1"

// expectedTables is the strict set Open() compares against the actual
// sqlite_master table list. Any deviation is Corrupted and triggers a
// full drop-and-reinitialize cycle (spec.md §4.1 "Policies").
var expectedTables = []string{
	"meta",
	"asinfo_core",
	"asinfo_org",
	"asinfo_peeringdb",
	"asinfo_hegemony",
	"asinfo_population",
	"asinfo_meta",
	"as2rel",
	"as2rel_meta",
	"rpki_roas",
	"rpki_aspas",
	"rpki_meta",
	"pfx2as",
	"pfx2as_meta",
}

// schemaDDL creates every table and index from a clean database. Prefix
// columns always follow the low/high + str + length layout of §4.1.
var schemaDDL = []string{
	`CREATE TABLE meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	// AS-info: core table + 4 optional provider tables, joined on asn
	// (org_name is normalized out into asinfo_org, keyed by org_id, so
	// it counts as the 4th optional table alongside peeringdb/hegemony/
	// population — see DESIGN.md for this Open Question resolution).
	`CREATE TABLE asinfo_core (
		asn     INTEGER PRIMARY KEY,
		name    TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		org_id  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX asinfo_core_org_id ON asinfo_core(org_id)`,
	`CREATE TABLE asinfo_org (
		org_id   TEXT PRIMARY KEY,
		org_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE asinfo_peeringdb (
		asn  INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	)`,
	`CREATE TABLE asinfo_hegemony (
		asn   INTEGER PRIMARY KEY,
		value REAL NOT NULL
	)`,
	`CREATE TABLE asinfo_population (
		asn   INTEGER PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
	`CREATE TABLE asinfo_meta (
		dataset      TEXT PRIMARY KEY,
		source_url   TEXT NOT NULL DEFAULT '',
		loaded_at    INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0
	)`,

	// AS relationships: both directions of (asn1, asn2) indexed so
	// neighbors(asn) never needs an OR'd query.
	`CREATE TABLE as2rel (
		asn1         INTEGER NOT NULL,
		asn2         INTEGER NOT NULL,
		peers_count  INTEGER NOT NULL DEFAULT 0,
		paths_count  INTEGER NOT NULL DEFAULT 0,
		rel          INTEGER NOT NULL
	)`,
	`CREATE INDEX as2rel_asn1 ON as2rel(asn1)`,
	`CREATE INDEX as2rel_asn2 ON as2rel(asn2)`,
	`CREATE TABLE as2rel_meta (
		dataset      TEXT PRIMARY KEY,
		source_url   TEXT NOT NULL DEFAULT '',
		loaded_at    INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0
	)`,

	// RPKI: ROAs and ASPAs share one meta table, keyed by sub-dataset.
	`CREATE TABLE rpki_roas (
		prefix_low    BLOB NOT NULL,
		prefix_high   BLOB NOT NULL,
		prefix_str    TEXT NOT NULL,
		prefix_length INTEGER NOT NULL,
		max_length    INTEGER NOT NULL,
		origin_asn    INTEGER NOT NULL,
		trust_anchor  TEXT NOT NULL DEFAULT '',
		UNIQUE(prefix_str, origin_asn, trust_anchor)
	)`,
	`CREATE INDEX rpki_roas_range ON rpki_roas(prefix_low, prefix_high)`,
	`CREATE INDEX rpki_roas_length ON rpki_roas(prefix_length)`,
	`CREATE INDEX rpki_roas_origin ON rpki_roas(origin_asn)`,
	`CREATE TABLE rpki_aspas (
		customer_asn INTEGER PRIMARY KEY,
		providers    TEXT NOT NULL -- JSON array of provider ASNs
	)`,
	`CREATE TABLE rpki_meta (
		dataset      TEXT PRIMARY KEY,
		source_url   TEXT NOT NULL DEFAULT '',
		loaded_at    INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0
	)`,

	// Pfx2as: prefix range queries plus lookup by origin ASN (MOAS is
	// multiple rows for the same prefix).
	`CREATE TABLE pfx2as (
		prefix_low    BLOB NOT NULL,
		prefix_high   BLOB NOT NULL,
		prefix_str    TEXT NOT NULL,
		prefix_length INTEGER NOT NULL,
		origin_asn    INTEGER NOT NULL
	)`,
	`CREATE INDEX pfx2as_range ON pfx2as(prefix_low, prefix_high)`,
	`CREATE INDEX pfx2as_length ON pfx2as(prefix_length)`,
	`CREATE INDEX pfx2as_origin ON pfx2as(origin_asn)`,
	`CREATE TABLE pfx2as_meta (
		dataset      TEXT PRIMARY KEY,
		source_url   TEXT NOT NULL DEFAULT '',
		loaded_at    INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0
	)`,
}
