package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"snapscan/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS imports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  context TEXT NOT NULL,
  source TEXT NOT NULL,
  format TEXT NOT NULL,
  itemCount INTEGER NOT NULL,
  warningsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scan_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  eventId TEXT NOT NULL UNIQUE,
  context TEXT NOT NULL,
  action TEXT NOT NULL,
  token TEXT,
  itemId TEXT,
  quantity INTEGER NOT NULL DEFAULT 0,
  outcome TEXT NOT NULL,
  message TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_scan_log_context ON scan_log(context, id);

CREATE TABLE IF NOT EXISTS slips (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  itemsJson TEXT NOT NULL DEFAULT '[]',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// Get returns nil when the key is absent.
func (d *DB) Get(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) Put(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) Delete(key string) error {
	_, err := d.conn.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (d *DB) Keys() ([]string, error) {
	rows, err := d.conn.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (d *DB) InsertImportRun(run internal.ImportRun) error {
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, _ := json.Marshal(warnings)
	_, err := d.conn.Exec(`
INSERT INTO imports (traceId, context, source, format, itemCount, warningsJson)
VALUES (?, ?, ?, ?, ?, ?)
`, run.TraceID, string(run.Context), run.Source, run.Format, run.ItemCount, string(warningsJSON))
	return err
}

func (d *DB) ListImportRuns(limit int) ([]internal.ImportRun, error) {
	rows, err := d.conn.Query(`
SELECT traceId, context, source, format, itemCount, warningsJson
FROM imports ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ImportRun
	for rows.Next() {
		var run internal.ImportRun
		var ctx, warningsJSON string
		if err := rows.Scan(&run.TraceID, &ctx, &run.Source, &run.Format, &run.ItemCount, &warningsJSON); err != nil {
			return nil, err
		}
		run.Context = internal.ListContext(ctx)
		_ = json.Unmarshal([]byte(warningsJSON), &run.Warnings)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) InsertScanEvent(ev internal.ScanEvent) error {
	_, err := d.conn.Exec(`
INSERT INTO scan_log (eventId, context, action, token, itemId, quantity, outcome, message, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(eventId) DO NOTHING
`, ev.ID, string(ev.Context), ev.Action, ev.Token, ev.ItemID, ev.Quantity, ev.Outcome, ev.Feedback.Message, ev.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// ListScanEvents returns the newest events first. An empty context lists all.
func (d *DB) ListScanEvents(ctx internal.ListContext, limit int) ([]internal.ScanLogRow, error) {
	rows, err := d.conn.Query(`
SELECT id, eventId, context, action, COALESCE(token, ''), COALESCE(itemId, ''), quantity, outcome, COALESCE(message, ''), createdAt
FROM scan_log WHERE (? = '' OR context = ?) ORDER BY id DESC LIMIT ?
`, string(ctx), string(ctx), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ScanLogRow
	for rows.Next() {
		var row internal.ScanLogRow
		if err := rows.Scan(&row.ID, &row.EventID, &row.Context, &row.Action, &row.Token, &row.ItemID, &row.Quantity, &row.Outcome, &row.Message, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpsertSlip(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.SlipRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO slips (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.SlipRow{}, err
	}

	row, err := d.GetSlipByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.SlipRow{}, err
	}
	if row == nil {
		return internal.SlipRow{}, errors.New("failed to upsert slip")
	}
	return *row, nil
}

const slipColumns = `id, provider, messageId, COALESCE(subject, ''), COALESCE(sender, ''), COALESCE(receivedAt, ''), hash, status, rawRef, itemsJson`

func scanSlip(scanner interface{ Scan(...any) error }) (internal.SlipRow, error) {
	var row internal.SlipRow
	err := scanner.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef, &row.ItemsJSON)
	return row, err
}

func (d *DB) GetSlipByProviderMessageID(provider, messageID string) (*internal.SlipRow, error) {
	row, err := scanSlip(d.conn.QueryRow(`SELECT `+slipColumns+` FROM slips WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetSlipByID(id int) (*internal.SlipRow, error) {
	row, err := scanSlip(d.conn.QueryRow(`SELECT `+slipColumns+` FROM slips WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustSlipByID(id int) (internal.SlipRow, error) {
	row, err := d.GetSlipByID(id)
	if err != nil {
		return internal.SlipRow{}, err
	}
	if row == nil {
		return internal.SlipRow{}, fmt.Errorf("slip not found: id=%d", id)
	}
	return *row, nil
}

func (d *DB) ListSlipsByStatus(status string, limit int) ([]internal.SlipRow, error) {
	rows, err := d.conn.Query(`SELECT `+slipColumns+` FROM slips WHERE (? = '' OR status = ?) ORDER BY receivedAt ASC LIMIT ?`, status, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SlipRow
	for rows.Next() {
		row, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateSlipStatus(slipID int, status string) error {
	_, err := d.conn.Exec(`UPDATE slips SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, slipID)
	return err
}

func (d *DB) SetSlipItems(slipID int, itemsJSON string, status string) error {
	_, err := d.conn.Exec(`UPDATE slips SET itemsJson = ?, status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, itemsJSON, status, slipID)
	return err
}
