package postgres

// schema is applied by Migrate. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS players (
	id                    TEXT PRIMARY KEY,
	username              TEXT NOT NULL DEFAULT '',
	full_name             TEXT NOT NULL DEFAULT '',
	display_name          TEXT NOT NULL DEFAULT '',
	is_guest              BOOLEAN NOT NULL DEFAULT FALSE,
	is_bot                BOOLEAN NOT NULL DEFAULT FALSE,
	bot_strategy          TEXT NOT NULL DEFAULT '',
	average_reaction_time BIGINT NOT NULL DEFAULT 0,
	reaction_samples      BIGINT NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS registered_players (
	player_id     TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS duels (
	id                    TEXT PRIMARY KEY,
	room_code             TEXT NOT NULL UNIQUE,
	status                TEXT NOT NULL,
	player1_id            TEXT NOT NULL,
	player2_id            TEXT NOT NULL DEFAULT '',
	player1_ready         BOOLEAN NOT NULL DEFAULT FALSE,
	player2_ready         BOOLEAN NOT NULL DEFAULT FALSE,
	start_timestamp       TIMESTAMPTZ,
	player1_reaction_time BIGINT,
	player2_reaction_time BIGINT,
	player1_false_start   BOOLEAN NOT NULL DEFAULT FALSE,
	player2_false_start   BOOLEAN NOT NULL DEFAULT FALSE,
	winner_id             TEXT NOT NULL DEFAULT '',
	round                 INTEGER NOT NULL DEFAULT 1,
	version               BIGINT NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
