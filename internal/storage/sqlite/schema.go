package sqlite

// Schema contains the SQL statements that create the SQLite schema.
// Every statement is idempotent so it runs on each open.
const Schema = `
-- Feelings: the primary record with strength and charge lifecycle
CREATE TABLE IF NOT EXISTS feelings (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    label TEXT NOT NULL,

    -- Classification
    intensity TEXT,
    pillar TEXT,
    weight TEXT NOT NULL DEFAULT 'medium',
    tags TEXT,

    -- Lifecycle
    charge TEXT NOT NULL DEFAULT 'fresh'
        CHECK (charge IN ('fresh', 'warm', 'cool', 'metabolized')),
    strength REAL NOT NULL DEFAULT 0.5,
    sit_count INTEGER NOT NULL DEFAULT 0,
    access_count INTEGER NOT NULL DEFAULT 0,

    -- Links
    predecessor_id TEXT,
    resolution_id TEXT,
    resolution_note TEXT,
    entity TEXT,

    -- Timestamps
    created_at TIMESTAMP NOT NULL,
    last_accessed_at TIMESTAMP,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_feelings_created_at ON feelings(created_at);
CREATE INDEX IF NOT EXISTS idx_feelings_pillar ON feelings(pillar);
CREATE INDEX IF NOT EXISTS idx_feelings_charge ON feelings(charge);

-- Emotion lexicon
CREATE TABLE IF NOT EXISTS emotions (
    label TEXT PRIMARY KEY,
    axis0 INTEGER NOT NULL DEFAULT 0,
    axis1 INTEGER NOT NULL DEFAULT 0,
    axis2 INTEGER NOT NULL DEFAULT 0,
    axis3 INTEGER NOT NULL DEFAULT 0,
    shadow_for TEXT,
    times_used INTEGER NOT NULL DEFAULT 0,
    last_used_at TIMESTAMP,
    is_user_defined INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

-- Append-only signal log (authoritative trait input)
CREATE TABLE IF NOT EXISTS signals (
    id TEXT PRIMARY KEY,
    feeling_id TEXT NOT NULL,
    d0 INTEGER NOT NULL,
    d1 INTEGER NOT NULL,
    d2 INTEGER NOT NULL,
    d3 INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at);

-- Trait snapshot history; the newest row is the current trait
CREATE TABLE IF NOT EXISTS trait_snapshots (
    id TEXT PRIMARY KEY,
    s0 INTEGER NOT NULL,
    s1 INTEGER NOT NULL,
    s2 INTEGER NOT NULL,
    s3 INTEGER NOT NULL,
    code TEXT NOT NULL,
    confidence INTEGER NOT NULL,
    total_signals INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- Shadow evidence log
CREATE TABLE IF NOT EXISTS shadow_events (
    id TEXT PRIMARY KEY,
    feeling_id TEXT NOT NULL,
    emotion_label TEXT NOT NULL,
    trait_code TEXT NOT NULL,
    note TEXT,
    recorded_at TIMESTAMP NOT NULL
);

-- Known entity names used for substring detection
CREATE TABLE IF NOT EXISTS entities (
    name TEXT PRIMARY KEY COLLATE NOCASE,
    created_at TIMESTAMP NOT NULL
);

-- Vector index: one embedding per indexed id
CREATE TABLE IF NOT EXISTS embeddings (
    id TEXT PRIMARY KEY,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    metadata TEXT,
    updated_at TIMESTAMP NOT NULL
);
`
