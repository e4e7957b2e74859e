package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Схема базы одного хранилища. DDL идемпотентен (IF NOT EXISTS), повторное
// применение к существующей базе безопасно.
//
// vault_files - текущее логическое состояние: ровно одна строка на stableId,
// всегда отражающая последнюю загруженную версию (last-write-wins).
// file_versions - неизменяемая история: по одной строке на каждый элемент
// каждой загрузки, удаляется только каскадом при уничтожении vault_files.
// vault_metadata - единственный маркер совместимости шифрования хранилища.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS vault_files (
    stableId TEXT PRIMARY KEY,
    currentEncryptedFilePath TEXT NOT NULL,
    currentMtime INTEGER NOT NULL,
    currentContentHash TEXT NOT NULL,
    isBinary INTEGER NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_vault_files_deleted ON vault_files (deleted);

CREATE TABLE IF NOT EXISTS file_versions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stableId TEXT NOT NULL,
    encryptedFilePath TEXT NOT NULL,
    encryptedContent TEXT,
    version_time TEXT NOT NULL,
    mtime INTEGER NOT NULL,
    contentHash TEXT NOT NULL,
    isBinary INTEGER NOT NULL,
    FOREIGN KEY (stableId) REFERENCES vault_files (stableId) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_file_versions_stableId ON file_versions (stableId);
CREATE INDEX IF NOT EXISTS idx_file_versions_version_time ON file_versions (version_time);
CREATE INDEX IF NOT EXISTS idx_file_versions_encryptedFilePath ON file_versions (encryptedFilePath);

CREATE TABLE IF NOT EXISTS vault_metadata (
    vault_id TEXT PRIMARY KEY,
    encryption_validation TEXT
);
`

// ensureSchema приводит базу хранилища к актуальной схеме.
func ensureSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("ошибка создания схемы: %w", err)
	}
	return nil
}
