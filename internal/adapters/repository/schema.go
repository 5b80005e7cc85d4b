package repository

const postgresSchema = `
CREATE TABLE IF NOT EXISTS challenges (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	rule           TEXT NOT NULL,
	pick_limit     INTEGER NOT NULL CHECK (pick_limit > 0),
	players_pool   JSONB NOT NULL,
	challenge_date DATE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_challenges_date ON challenges(challenge_date);

CREATE TABLE IF NOT EXISTS challenge_attempts (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	challenge_id TEXT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
	score        DOUBLE PRECISION NOT NULL,
	picks        JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, challenge_id)
);
CREATE INDEX IF NOT EXISTS idx_attempts_challenge ON challenge_attempts(challenge_id);

CREATE TABLE IF NOT EXISTS profiles (
	user_id  TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS challenges (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	rule           TEXT NOT NULL,
	pick_limit     INTEGER NOT NULL CHECK (pick_limit > 0),
	players_pool   TEXT NOT NULL,
	challenge_date TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_challenges_date ON challenges(challenge_date);

CREATE TABLE IF NOT EXISTS challenge_attempts (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	challenge_id TEXT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
	score        REAL NOT NULL,
	picks        TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE (user_id, challenge_id)
);
CREATE INDEX IF NOT EXISTS idx_attempts_challenge ON challenge_attempts(challenge_id);

CREATE TABLE IF NOT EXISTS profiles (
	user_id  TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE
);
`
