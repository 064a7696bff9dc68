package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id           TEXT PRIMARY KEY,
    email        TEXT NOT NULL,
    name         TEXT,
    avatar_url   TEXT,
    provider     TEXT NOT NULL DEFAULT 'graphql',
    created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS emails (
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    id          TEXT NOT NULL,
    folder      TEXT NOT NULL,
    from_addr   TEXT NOT NULL,
    from_name   TEXT,
    to_addrs    TEXT,
    subject     TEXT,
    body_text   TEXT,
    date        DATETIME NOT NULL,
    is_read     BOOLEAN DEFAULT FALSE,
    is_starred  BOOLEAN DEFAULT FALSE,
    mirrored_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS email_labels (
    user_id     TEXT NOT NULL,
    email_id    TEXT NOT NULL,
    label_id    TEXT NOT NULL,
    PRIMARY KEY (user_id, email_id, label_id),
    FOREIGN KEY (user_id, email_id) REFERENCES emails(user_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS labels (
    user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    id           TEXT NOT NULL,
    name         TEXT NOT NULL,
    type         TEXT,
    color        TEXT,
    list_vis     TEXT,
    message_vis  TEXT,
    PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS attachments (
    user_id     TEXT NOT NULL,
    email_id    TEXT NOT NULL,
    position    INTEGER NOT NULL,
    filename    TEXT,
    size        INTEGER,
    url         TEXT,
    PRIMARY KEY (user_id, email_id, position),
    FOREIGN KEY (user_id, email_id) REFERENCES emails(user_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS drafts (
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    id          TEXT NOT NULL,
    subject     TEXT,
    body        TEXT,
    recipients  TEXT,
    created_at  DATETIME,
    updated_at  DATETIME,
    PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS mirror_state (
    user_id     TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    version     INTEGER,
    view        TEXT,
    last_mirror DATETIME
);

CREATE INDEX IF NOT EXISTS idx_emails_folder ON emails(user_id, folder);
CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date DESC);
CREATE INDEX IF NOT EXISTS idx_email_labels_label ON email_labels(user_id, label_id);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS emails_fts USING fts5(
    subject, body_text, from_addr, from_name,
    content='emails', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS emails_ai AFTER INSERT ON emails BEGIN
    INSERT INTO emails_fts(rowid, subject, body_text, from_addr, from_name)
    VALUES (new.rowid, new.subject, new.body_text, new.from_addr, new.from_name);
END;

CREATE TRIGGER IF NOT EXISTS emails_ad AFTER DELETE ON emails BEGIN
    INSERT INTO emails_fts(emails_fts, rowid, subject, body_text, from_addr, from_name)
    VALUES ('delete', old.rowid, old.subject, old.body_text, old.from_addr, old.from_name);
END;

CREATE TRIGGER IF NOT EXISTS emails_au AFTER UPDATE ON emails BEGIN
    INSERT INTO emails_fts(emails_fts, rowid, subject, body_text, from_addr, from_name)
    VALUES ('delete', old.rowid, old.subject, old.body_text, old.from_addr, old.from_name);
    INSERT INTO emails_fts(rowid, subject, body_text, from_addr, from_name)
    VALUES (new.rowid, new.subject, new.body_text, new.from_addr, new.from_name);
END;
`
