package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/maynagashev/fastsync/internal/cache"
	"github.com/maynagashev/fastsync/internal/encryption"
	"github.com/maynagashev/fastsync/internal/models"
	"github.com/maynagashev/fastsync/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrEncryptionConflict - маркер шифрования запроса не совпадает с маркером хранилища.
	ErrEncryptionConflict = errors.New("конфликт маркера шифрования")
	// ErrEncryptionRequired - хранилище зашифровано, запрос без маркера отклонен.
	ErrEncryptionRequired = errors.New("сервер ожидает зашифрованные данные")
	// ErrInvalidVaultID - недопустимый идентификатор хранилища.
	ErrInvalidVaultID = errors.New("недопустимый идентификатор хранилища")
)

// SyncService определяет операции синхронизации хранилища.
// Каждая операция локальна для одного хранилища, внутренних повторов нет:
// неудавшаяся транзакция откатывается и ошибка отдается вызывающему.
type SyncService interface {
	UploadChanges(ctx context.Context, vaultID string, req *models.UploadChangesRequest) error
	GetState(ctx context.Context, vaultID string) (*models.StateResponse, error)
	DownloadFiles(ctx context.Context, vaultID string, paths []string) (*models.DownloadFilesResponse, error)
	GetFileHistory(ctx context.Context, vaultID, stableID string) ([]models.HistoryEntry, error)
	ListAllFiles(ctx context.Context, vaultID string) ([]models.FileListEntry, error)
	ForcePushReset(ctx context.Context, vaultID string, marker *string) error
}

// syncService реализует оркестрацию операций синхронизации
// поверх хранилища и кеша состояний.
var _ SyncService = (*syncService)(nil) // Проверка соответствия интерфейсу

type syncService struct {
	store      repository.Store
	stateCache cache.Cache
}

// NewSyncService создает сервис синхронизации.
func NewSyncService(store repository.Store, stateCache cache.Cache) SyncService {
	return &syncService{store: store, stateCache: stateCache}
}

// UploadChanges применяет загрузку клиента и после фиксации транзакции
// инвалидирует кеш состояния. При отказе шлюза шифрования или сбое записи
// кеш не трогается: откат гарантирует, что читатели не увидят частичных данных.
func (s *syncService) UploadChanges(ctx context.Context, vaultID string, req *models.UploadChangesRequest) error {
	log.Printf("[SyncService] Загрузка в хранилище %s: %d файлов, маркер: %t",
		vaultID, len(req.Data), req.EncryptionValidation != nil)

	err := s.store.ApplyUpload(ctx, vaultID, req.Data, req.EncryptionValidation)
	if err != nil {
		return translateStoreErr(err)
	}

	// Инвалидация строго после коммита и до ответа клиенту: следующий
	// читатель наполнит кеш уже зафиксированным состоянием.
	s.stateCache.Invalidate(vaultID)
	return nil
}

// GetState возвращает снимок состояния хранилища через кеш: при попадании
// обращения к базе не происходит вовсе, при промахе снимок читается из
// хранилища и кладется в кеш.
func (s *syncService) GetState(ctx context.Context, vaultID string) (*models.StateResponse, error) {
	if state, ok := s.stateCache.Get(vaultID); ok {
		log.Printf("[SyncService] Состояние хранилища %s отдано из кеша", vaultID)
		return state, nil
	}

	state, err := s.store.ReadCurrentState(ctx, vaultID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.stateCache.Set(vaultID, state)
	return state, nil
}

// DownloadFiles возвращает содержимое по запрошенным путям.
// Пустой запрос сразу дает пустой ответ без обращения к хранилищу.
func (s *syncService) DownloadFiles(
	ctx context.Context,
	vaultID string,
	paths []string,
) (*models.DownloadFilesResponse, error) {
	if len(paths) == 0 {
		return &models.DownloadFilesResponse{Files: []models.FileContent{}}, nil
	}

	files, err := s.store.ReadContentByPaths(ctx, vaultID, paths)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	log.Printf("[SyncService] Для хранилища %s найдено %d файлов из %d запрошенных путей",
		vaultID, len(files), len(paths))
	return &models.DownloadFilesResponse{Files: files}, nil
}

// GetFileHistory возвращает историю версий файла, новые первыми.
// История без кеша: запросы точечные, выигрыш от кеширования мал.
func (s *syncService) GetFileHistory(ctx context.Context, vaultID, stableID string) ([]models.HistoryEntry, error) {
	history, err := s.store.ReadHistory(ctx, vaultID, stableID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return history, nil
}

// ListAllFiles возвращает список всех логических файлов хранилища.
func (s *syncService) ListAllFiles(ctx context.Context, vaultID string) ([]models.FileListEntry, error) {
	files, err := s.store.ListFiles(ctx, vaultID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return files, nil
}

// ForcePushReset уничтожает состояние и историю хранилища.
// Шлюз шифрования обходится: сброс проходит при любом прежнем маркере,
// но новый маркер запроса фиксируется. Кеш инвалидируется после коммита.
func (s *syncService) ForcePushReset(ctx context.Context, vaultID string, marker *string) error {
	log.Printf("[SyncService] ВНИМАНИЕ: полный сброс хранилища %s, маркер: %t", vaultID, marker != nil)

	if err := s.store.ResetVault(ctx, vaultID, marker); err != nil {
		return translateStoreErr(err)
	}

	s.stateCache.Invalidate(vaultID)
	return nil
}

// translateStoreErr переводит ошибки хранилища и шлюза шифрования
// в ошибки сервисного слоя, сохраняя исходную причину в цепочке.
func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, encryption.ErrMarkerConflict):
		return fmt.Errorf("%w: %w", ErrEncryptionConflict, err)
	case errors.Is(err, encryption.ErrMarkerRequired):
		return fmt.Errorf("%w: %w", ErrEncryptionRequired, err)
	case errors.Is(err, repository.ErrInvalidVaultID):
		return fmt.Errorf("%w: %w", ErrInvalidVaultID, err)
	}
	return err
}
