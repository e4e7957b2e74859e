package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maynagashev/fastsync/internal/encryption"
	"github.com/maynagashev/fastsync/internal/models"
)

// Ошибки хранилища.
var (
	// ErrStorageRead - сбой движка при чтении.
	ErrStorageRead = errors.New("ошибка чтения из базы хранилища")
	// ErrStorageWrite - сбой движка при записи, транзакция откачена.
	ErrStorageWrite = errors.New("ошибка записи в базу хранилища")
)

// Формат version_time: UTC без смещения, фиксированная ширина микросекунд,
// поэтому лексикографический порядок строк совпадает с хронологическим.
const versionTimeLayout = "2006-01-02T15:04:05.000000"

// Store определяет методы долговременного хранилища синхронизации.
// Все операции изолированы по идентификатору хранилища: запрос к одному
// хранилищу не видит и не меняет строки другого (отдельные файлы баз).
type Store interface {
	// ApplyUpload атомарно применяет загрузку: проверяет маркер шифрования,
	// по каждому элементу перезаписывает логическое состояние и добавляет
	// строку истории. Либо фиксируется всё, либо ничего.
	ApplyUpload(ctx context.Context, vaultID string, items []models.VersionData, marker *string) error
	// ReadCurrentState возвращает все логические файлы хранилища и текущий маркер.
	ReadCurrentState(ctx context.Context, vaultID string) (*models.StateResponse, error)
	// ReadContentByPaths возвращает не более одной версии на каждый запрошенный
	// путь (самую свежую); пути, которых нет в истории, опускаются.
	ReadContentByPaths(ctx context.Context, vaultID string, paths []string) ([]models.FileContent, error)
	// ReadHistory возвращает все версии файла, новые первыми.
	// Пустая история - не ошибка.
	ReadHistory(ctx context.Context, vaultID, stableID string) ([]models.HistoryEntry, error)
	// ListFiles возвращает пары (stableId, путь) всех логических файлов,
	// упорядоченные по stableId.
	ListFiles(ctx context.Context, vaultID string) ([]models.FileListEntry, error)
	// ResetVault атомарно уничтожает историю и состояние хранилища и
	// записывает новый маркер (в том числе NULL). Необратимо.
	ResetVault(ctx context.Context, vaultID string, marker *string) error
}

// sqliteStore реализует Store поверх реестра баз SQLite.
type sqliteStore struct {
	provider DBProvider
}

// NewStore создает хранилище синхронизации поверх источника подключений.
func NewStore(provider DBProvider) Store {
	return &sqliteStore{provider: provider}
}

// ApplyUpload применяет загрузку в одной транзакции.
// Порядок внутри транзакции существенен: сначала проверка маркера (до любых
// записей - отказ обязан оставить ноль изменений), затем фиксация маркера,
// затем построчное обновление состояния и добавление истории.
func (s *sqliteStore) ApplyUpload(
	ctx context.Context,
	vaultID string,
	items []models.VersionData,
	marker *string,
) error {
	db, err := s.provider.DB(vaultID)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: ошибка начала транзакции: %w", ErrStorageWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := markerInTx(ctx, tx, vaultID)
	if err != nil {
		return err
	}

	if err = encryption.ValidateMarker(existing, marker); err != nil {
		log.Printf("[SyncStore] Отказ по маркеру шифрования для хранилища %s: %v", vaultID, err)
		return err
	}

	if marker != nil && *marker != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO vault_metadata (vault_id, encryption_validation) VALUES (?, ?)`,
			vaultID, *marker)
		if err != nil {
			return fmt.Errorf("%w: ошибка записи маркера шифрования: %w", ErrStorageWrite, err)
		}
	}

	versionTime := time.Now().UTC().Format(versionTimeLayout)
	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO vault_files
			     (stableId, currentEncryptedFilePath, currentMtime, currentContentHash, isBinary, deleted)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.StableID, item.FilePath, item.Mtime, item.ContentHash, item.IsBinary, item.Deleted)
		if err != nil {
			return fmt.Errorf("%w: ошибка записи состояния файла %s: %w", ErrStorageWrite, item.StableID, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO file_versions
			     (stableId, encryptedFilePath, encryptedContent, version_time, mtime, contentHash, isBinary)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.StableID, item.FilePath, item.Content, versionTime, item.Mtime, item.ContentHash, item.IsBinary)
		if err != nil {
			return fmt.Errorf("%w: ошибка записи версии файла %s: %w", ErrStorageWrite, item.StableID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: ошибка фиксации транзакции: %w", ErrStorageWrite, err)
	}

	log.Printf("[SyncStore] Загрузка применена для хранилища %s: %d файлов", vaultID, len(items))
	return nil
}

// ReadCurrentState возвращает снимок логического состояния хранилища.
func (s *sqliteStore) ReadCurrentState(ctx context.Context, vaultID string) (*models.StateResponse, error) {
	db, err := s.provider.DB(vaultID)
	if err != nil {
		return nil, err
	}

	var files []models.FileState
	err = db.SelectContext(ctx, &files,
		`SELECT stableId, currentEncryptedFilePath, currentMtime, currentContentHash, isBinary, deleted
		 FROM vault_files`)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения состояния: %w", ErrStorageRead, err)
	}

	state := make(map[string]models.FileState, len(files))
	for _, f := range files {
		state[f.StableID] = f
	}

	marker, err := currentMarker(ctx, db, vaultID)
	if err != nil {
		return nil, err
	}

	return &models.StateResponse{State: state, EncryptionValidation: marker}, nil
}

// ReadContentByPaths возвращает по одной версии на каждый найденный путь.
// Версии отсортированы по убыванию version_time (при равенстве - по id),
// так что представителем пути всегда оказывается самая свежая версия.
func (s *sqliteStore) ReadContentByPaths(
	ctx context.Context,
	vaultID string,
	paths []string,
) ([]models.FileContent, error) {
	files := make([]models.FileContent, 0, len(paths))
	if len(paths) == 0 {
		return files, nil
	}

	db, err := s.provider.DB(vaultID)
	if err != nil {
		return nil, err
	}

	query, args, err := sqlx.In(
		`SELECT encryptedFilePath, encryptedContent, mtime, contentHash, isBinary
		 FROM file_versions
		 WHERE encryptedFilePath IN (?)
		 ORDER BY version_time DESC, id DESC`, paths)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка подготовки запроса: %w", ErrStorageRead, err)
	}

	var versions []models.FileContent
	err = db.SelectContext(ctx, &versions, db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения содержимого: %w", ErrStorageRead, err)
	}

	seen := make(map[string]bool, len(paths))
	for _, v := range versions {
		if seen[v.EncryptedFilePath] {
			continue
		}
		seen[v.EncryptedFilePath] = true
		files = append(files, v)
	}

	return files, nil
}

// ReadHistory возвращает историю версий файла, новые первыми.
func (s *sqliteStore) ReadHistory(ctx context.Context, vaultID, stableID string) ([]models.HistoryEntry, error) {
	db, err := s.provider.DB(vaultID)
	if err != nil {
		return nil, err
	}

	history := make([]models.HistoryEntry, 0)
	err = db.SelectContext(ctx, &history,
		`SELECT encryptedFilePath, encryptedContent, mtime, contentHash, isBinary, version_time
		 FROM file_versions
		 WHERE stableId = ?
		 ORDER BY version_time DESC, id DESC`, stableID)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения истории: %w", ErrStorageRead, err)
	}

	return history, nil
}

// ListFiles возвращает список всех логических файлов хранилища.
func (s *sqliteStore) ListFiles(ctx context.Context, vaultID string) ([]models.FileListEntry, error) {
	db, err := s.provider.DB(vaultID)
	if err != nil {
		return nil, err
	}

	files := make([]models.FileListEntry, 0)
	err = db.SelectContext(ctx, &files,
		`SELECT stableId, currentEncryptedFilePath
		 FROM vault_files
		 ORDER BY stableId`)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения списка файлов: %w", ErrStorageRead, err)
	}

	return files, nil
}

// ResetVault уничтожает состояние и историю хранилища в одной транзакции.
// Проверка маркера намеренно не выполняется: сброс всегда проходит и
// фиксирует новый маркер запроса, даже пустой.
func (s *sqliteStore) ResetVault(ctx context.Context, vaultID string, marker *string) error {
	db, err := s.provider.DB(vaultID)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: ошибка начала транзакции: %w", ErrStorageWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM file_versions`)
	if err != nil {
		return fmt.Errorf("%w: ошибка удаления версий: %w", ErrStorageWrite, err)
	}
	deletedVersions, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM vault_files`)
	if err != nil {
		return fmt.Errorf("%w: ошибка удаления логических файлов: %w", ErrStorageWrite, err)
	}
	deletedFiles, _ := res.RowsAffected()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO vault_metadata (vault_id, encryption_validation) VALUES (?, ?)`,
		vaultID, marker)
	if err != nil {
		return fmt.Errorf("%w: ошибка записи маркера шифрования: %w", ErrStorageWrite, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: ошибка фиксации транзакции: %w", ErrStorageWrite, err)
	}

	log.Printf("[SyncStore] Хранилище %s сброшено: удалено %d версий и %d логических файлов",
		vaultID, deletedVersions, deletedFiles)
	return nil
}

// markerInTx читает текущий маркер шифрования внутри транзакции загрузки.
func markerInTx(ctx context.Context, tx *sqlx.Tx, vaultID string) (*string, error) {
	var marker sql.NullString
	err := tx.GetContext(ctx, &marker,
		`SELECT encryption_validation FROM vault_metadata WHERE vault_id = ?`, vaultID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: ошибка чтения маркера шифрования: %w", ErrStorageRead, err)
	}
	if !marker.Valid {
		return nil, nil
	}
	return &marker.String, nil
}

// currentMarker читает текущий маркер шифрования вне транзакции.
func currentMarker(ctx context.Context, db *sqlx.DB, vaultID string) (*string, error) {
	var marker sql.NullString
	err := db.GetContext(ctx, &marker,
		`SELECT encryption_validation FROM vault_metadata WHERE vault_id = ?`, vaultID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: ошибка чтения маркера шифрования: %w", ErrStorageRead, err)
	}
	if !marker.Valid {
		return nil, nil
	}
	return &marker.String, nil
}
