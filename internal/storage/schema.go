// Package storage provides delete-job persistence using SQLite.
package storage

// Schema definitions for the delete-job queue database
const (
	// SchemaV1 is the initial database schema
	SchemaV1 = `
CREATE TABLE IF NOT EXISTS delete_jobs (
	id TEXT PRIMARY KEY,
	public_id TEXT,
	image_urls TEXT,
	product_id TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delete_jobs_status ON delete_jobs(status);
CREATE INDEX IF NOT EXISTS idx_delete_jobs_created_at ON delete_jobs(created_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`
)

// Migrations represents all available migrations
var Migrations = []struct {
	Version int
	SQL     string
}{
	{
		Version: 1,
		SQL:     SchemaV1,
	},
}
