package auth

// SchemaSQL is this package's slice of the database schema. The server
// composes it into its migration list.
const SchemaSQL = `
CREATE TABLE session(key TEXT PRIMARY KEY, email TEXT NOT NULL, identity_token TEXT NOT NULL, created_at TIMESTAMP, expires_at TIMESTAMP);
CREATE INDEX idx_session_expires_at ON session(expires_at);
`
