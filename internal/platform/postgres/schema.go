package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS registry_config (
		singleton             BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
		next_cert_id          BIGINT  NOT NULL,
		max_certs             BIGINT  NOT NULL,
		mint_fee              BIGINT  NOT NULL,
		treasury              TEXT    NOT NULL,
		controlling_authority TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS certifications (
		id           BIGINT      PRIMARY KEY,
		teacher_id   TEXT        NOT NULL,
		issuer       TEXT        NOT NULL,
		doc_hash     BYTEA       NOT NULL,
		issue_date   BIGINT      NOT NULL,
		expiry_date  BIGINT,
		subjects     TEXT[]      NOT NULL,
		issuing_body TEXT        NOT NULL,
		owner        TEXT        NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_certifications_owner ON certifications (owner)`,
	`CREATE TABLE IF NOT EXISTS issuer_allowlist (
		principal  TEXT        PRIMARY KEY,
		reason     TEXT        NOT NULL DEFAULT '',
		created_by TEXT        NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id         UUID        PRIMARY KEY,
		category   TEXT        NOT NULL,
		timestamp  TIMESTAMPTZ NOT NULL,
		actor      TEXT        NOT NULL,
		subject    TEXT        NOT NULL DEFAULT '',
		action     TEXT        NOT NULL,
		decision   TEXT        NOT NULL DEFAULT '',
		reason     TEXT        NOT NULL DEFAULT '',
		request_id TEXT        NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events (actor, timestamp)`,
}
