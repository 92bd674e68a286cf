package storage

// schemaVersion is the latest migration number. Both dialects must define
// every version up to it.
const schemaVersion = 1

// metaDDL creates the table that records the applied schema version.
const metaDDL = `CREATE TABLE IF NOT EXISTS liferpg_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

var sqliteMigrations = map[int]string{
	1: `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    total_xp INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    base_xp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id),
    category_id INTEGER NOT NULL REFERENCES categories(id),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    frequency TEXT NOT NULL,
    status TEXT NOT NULL,
    xp_reward INTEGER NOT NULL,
    difficulty INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    due_date TEXT,
    last_completed TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS task_completions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id INTEGER NOT NULL REFERENCES tasks(id),
    user_id INTEGER NOT NULL REFERENCES users(id),
    completed_at TEXT NOT NULL,
    xp_earned INTEGER NOT NULL,
    streak_bonus INTEGER NOT NULL DEFAULT 0,
    level_up INTEGER NOT NULL DEFAULT 0,
    new_level INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_completions_user_time ON task_completions(user_id, completed_at);
`,
}

var postgresMigrations = map[int]string{
	1: `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    total_xp INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    base_xp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    category_id BIGINT NOT NULL REFERENCES categories(id),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    frequency TEXT NOT NULL,
    status TEXT NOT NULL,
    xp_reward INTEGER NOT NULL,
    difficulty INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    due_date TEXT,
    last_completed TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS task_completions (
    id BIGSERIAL PRIMARY KEY,
    task_id BIGINT NOT NULL REFERENCES tasks(id),
    user_id BIGINT NOT NULL REFERENCES users(id),
    completed_at TEXT NOT NULL,
    xp_earned INTEGER NOT NULL,
    streak_bonus INTEGER NOT NULL DEFAULT 0,
    level_up BOOLEAN NOT NULL DEFAULT FALSE,
    new_level INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_completions_user_time ON task_completions(user_id, completed_at);
`,
}
