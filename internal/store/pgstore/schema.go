package pgstore

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cms_records (
		type       text        NOT NULL,
		id         text        NOT NULL,
		data       jsonb       NOT NULL DEFAULT '{}'::jsonb,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		PRIMARY KEY (type, id)
	)`,
	`CREATE INDEX IF NOT EXISTS cms_records_type_updated_idx ON cms_records (type, updated_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS cms_records_type_created_idx ON cms_records (type, created_at)`,
	`CREATE TABLE IF NOT EXISTS cms_links (
		type     text    NOT NULL,
		id       text    NOT NULL,
		attr     text    NOT NULL,
		position integer NOT NULL,
		target   text    NOT NULL,
		PRIMARY KEY (type, id, attr, position)
	)`,
}
