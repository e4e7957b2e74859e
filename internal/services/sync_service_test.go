package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/fastsync/internal/encryption"
	"github.com/maynagashev/fastsync/internal/models"
	"github.com/maynagashev/fastsync/internal/repository"
	"github.com/maynagashev/fastsync/internal/services"
)

// MockStore - мок хранилища синхронизации.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ApplyUpload(
	ctx context.Context,
	vaultID string,
	items []models.VersionData,
	marker *string,
) error {
	args := m.Called(ctx, vaultID, items, marker)
	return args.Error(0)
}

func (m *MockStore) ReadCurrentState(ctx context.Context, vaultID string) (*models.StateResponse, error) {
	args := m.Called(ctx, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StateResponse), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockStore) ReadContentByPaths(
	ctx context.Context,
	vaultID string,
	paths []string,
) ([]models.FileContent, error) {
	args := m.Called(ctx, vaultID, paths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FileContent), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockStore) ReadHistory(ctx context.Context, vaultID, stableID string) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, vaultID, stableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistoryEntry), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockStore) ListFiles(ctx context.Context, vaultID string) ([]models.FileListEntry, error) {
	args := m.Called(ctx, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FileListEntry), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockStore) ResetVault(ctx context.Context, vaultID string, marker *string) error {
	args := m.Called(ctx, vaultID, marker)
	return args.Error(0)
}

var _ repository.Store = (*MockStore)(nil)

// fakeCache - детерминированная подмена кеша для проверки контракта когерентности.
type fakeCache struct {
	entries       map[string]*models.StateResponse
	invalidations []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.StateResponse)}
}

func (c *fakeCache) Get(vaultID string) (*models.StateResponse, bool) {
	state, ok := c.entries[vaultID]
	return state, ok
}

func (c *fakeCache) Set(vaultID string, state *models.StateResponse) {
	c.entries[vaultID] = state
}

func (c *fakeCache) Invalidate(vaultID string) {
	delete(c.entries, vaultID)
	c.invalidations = append(c.invalidations, vaultID)
}

func snapshot(mtime int64) *models.StateResponse {
	return &models.StateResponse{
		State: map[string]models.FileState{
			"s1": {CurrentEncryptedFilePath: "p1", CurrentMtime: mtime, CurrentContentHash: "h"},
		},
	}
}

func uploadReq() *models.UploadChangesRequest {
	return &models.UploadChangesRequest{
		Data: []models.VersionData{{StableID: "s1", FilePath: "p1", Content: "v", Mtime: 1, ContentHash: "h"}},
	}
}

func TestUploadChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("Успешная загрузка инвалидирует кеш после фиксации", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		stateCache.Set("vault-1", snapshot(1)) // устаревший снимок до загрузки
		svc := services.NewSyncService(store, stateCache)

		req := uploadReq()
		store.On("ApplyUpload", ctx, "vault-1", req.Data, (*string)(nil)).Return(nil)

		require.NoError(t, svc.UploadChanges(ctx, "vault-1", req))

		assert.Equal(t, []string{"vault-1"}, stateCache.invalidations)
		_, ok := stateCache.Get("vault-1")
		assert.False(t, ok, "устаревший снимок должен быть удален")
		store.AssertExpectations(t)
	})

	t.Run("Конфликт маркера переводится в ошибку сервиса, кеш не тронут", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		stale := snapshot(1)
		stateCache.Set("vault-1", stale)
		svc := services.NewSyncService(store, stateCache)

		req := uploadReq()
		store.On("ApplyUpload", ctx, "vault-1", req.Data, (*string)(nil)).
			Return(encryption.ErrMarkerConflict)

		err := svc.UploadChanges(ctx, "vault-1", req)
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrEncryptionConflict)

		// Неудавшаяся мутация не инвалидирует и не подменяет кеш
		assert.Empty(t, stateCache.invalidations)
		cached, ok := stateCache.Get("vault-1")
		require.True(t, ok)
		assert.Same(t, stale, cached)
	})

	t.Run("Отсутствующий маркер переводится в ошибку сервиса", func(t *testing.T) {
		store := new(MockStore)
		svc := services.NewSyncService(store, newFakeCache())

		req := uploadReq()
		store.On("ApplyUpload", ctx, "vault-1", req.Data, (*string)(nil)).
			Return(fmt.Errorf("ошибка загрузки: %w", encryption.ErrMarkerRequired))

		err := svc.UploadChanges(ctx, "vault-1", req)
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrEncryptionRequired)
	})

	t.Run("Ошибка записи отдается без перевода", func(t *testing.T) {
		store := new(MockStore)
		svc := services.NewSyncService(store, newFakeCache())

		req := uploadReq()
		store.On("ApplyUpload", ctx, "vault-1", req.Data, (*string)(nil)).
			Return(repository.ErrStorageWrite)

		err := svc.UploadChanges(ctx, "vault-1", req)
		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrStorageWrite)
	})
}

func TestGetState(t *testing.T) {
	ctx := context.Background()

	t.Run("Попадание в кеш не обращается к хранилищу", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		cached := snapshot(5)
		stateCache.Set("vault-1", cached)
		svc := services.NewSyncService(store, stateCache)

		state, err := svc.GetState(ctx, "vault-1")
		require.NoError(t, err)
		assert.Same(t, cached, state)
		store.AssertNotCalled(t, "ReadCurrentState", mock.Anything, mock.Anything)
	})

	t.Run("Промах читает хранилище и наполняет кеш", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		svc := services.NewSyncService(store, stateCache)

		fresh := snapshot(6)
		store.On("ReadCurrentState", ctx, "vault-1").Return(fresh, nil)

		state, err := svc.GetState(ctx, "vault-1")
		require.NoError(t, err)
		assert.Same(t, fresh, state)

		cached, ok := stateCache.Get("vault-1")
		require.True(t, ok)
		assert.Same(t, fresh, cached)
		store.AssertExpectations(t)
	})

	t.Run("Ошибка чтения не наполняет кеш", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		svc := services.NewSyncService(store, stateCache)

		store.On("ReadCurrentState", ctx, "vault-1").Return(nil, repository.ErrStorageRead)

		_, err := svc.GetState(ctx, "vault-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrStorageRead)
		_, ok := stateCache.Get("vault-1")
		assert.False(t, ok)
	})

	// Сценарий когерентности: чтение сразу после успешной загрузки
	// никогда не возвращает состояние до загрузки.
	t.Run("Чтение после загрузки не видит устаревший снимок", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		svc := services.NewSyncService(store, stateCache)

		// Читатель наполнил кеш состоянием до загрузки
		before := snapshot(1)
		store.On("ReadCurrentState", ctx, "vault-1").Return(before, nil).Once()
		state, err := svc.GetState(ctx, "vault-1")
		require.NoError(t, err)
		assert.Same(t, before, state)

		// Загрузка фиксируется и инвалидирует кеш
		req := uploadReq()
		store.On("ApplyUpload", ctx, "vault-1", req.Data, (*string)(nil)).Return(nil)
		require.NoError(t, svc.UploadChanges(ctx, "vault-1", req))

		// Следующее чтение - промах, отдается зафиксированное состояние
		after := snapshot(2)
		store.On("ReadCurrentState", ctx, "vault-1").Return(after, nil).Once()
		state, err = svc.GetState(ctx, "vault-1")
		require.NoError(t, err)
		assert.Same(t, after, state)
		store.AssertExpectations(t)
	})
}

func TestDownloadFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("Пустой запрос не обращается к хранилищу", func(t *testing.T) {
		store := new(MockStore)
		svc := services.NewSyncService(store, newFakeCache())

		resp, err := svc.DownloadFiles(ctx, "vault-1", nil)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Empty(t, resp.Files)
		assert.NotNil(t, resp.Files)
		store.AssertNotCalled(t, "ReadContentByPaths", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Запрошенные пути передаются в хранилище", func(t *testing.T) {
		store := new(MockStore)
		svc := services.NewSyncService(store, newFakeCache())

		found := []models.FileContent{{EncryptedFilePath: "p1", EncryptedContent: "v"}}
		store.On("ReadContentByPaths", ctx, "vault-1", []string{"p1", "p2"}).Return(found, nil)

		resp, err := svc.DownloadFiles(ctx, "vault-1", []string{"p1", "p2"})
		require.NoError(t, err)
		assert.Equal(t, found, resp.Files)
		store.AssertExpectations(t)
	})
}

func TestGetFileHistory(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	svc := services.NewSyncService(store, newFakeCache())

	history := []models.HistoryEntry{
		{FilePath: "p1", Content: "v2", VersionTime: "2025-06-02T10:00:00.000000"},
		{FilePath: "p1", Content: "v1", VersionTime: "2025-06-01T10:00:00.000000"},
	}
	store.On("ReadHistory", ctx, "vault-1", "s1").Return(history, nil)

	got, err := svc.GetFileHistory(ctx, "vault-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, history, got)
}

func TestListAllFiles(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	svc := services.NewSyncService(store, newFakeCache())

	files := []models.FileListEntry{{StableID: "s1", CurrentEncryptedFilePath: "p1"}}
	store.On("ListFiles", ctx, "vault-1").Return(files, nil)

	got, err := svc.ListAllFiles(ctx, "vault-1")
	require.NoError(t, err)
	assert.Equal(t, files, got)
}

func TestForcePushReset(t *testing.T) {
	ctx := context.Background()

	t.Run("Успешный сброс инвалидирует кеш", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		stateCache.Set("vault-1", snapshot(1))
		svc := services.NewSyncService(store, stateCache)

		marker := "B"
		store.On("ResetVault", ctx, "vault-1", &marker).Return(nil)

		require.NoError(t, svc.ForcePushReset(ctx, "vault-1", &marker))
		assert.Equal(t, []string{"vault-1"}, stateCache.invalidations)
	})

	t.Run("Неудавшийся сброс оставляет кеш без изменений", func(t *testing.T) {
		store := new(MockStore)
		stateCache := newFakeCache()
		stateCache.Set("vault-1", snapshot(1))
		svc := services.NewSyncService(store, stateCache)

		store.On("ResetVault", ctx, "vault-1", (*string)(nil)).Return(repository.ErrStorageWrite)

		err := svc.ForcePushReset(ctx, "vault-1", nil)
		require.Error(t, err)
		assert.Empty(t, stateCache.invalidations)
	})
}

func TestTranslate_InvalidVaultID(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	svc := services.NewSyncService(store, newFakeCache())

	wrapped := fmt.Errorf("%w: %q", repository.ErrInvalidVaultID, "../evil")
	store.On("ListFiles", ctx, "../evil").Return(nil, wrapped)

	_, err := svc.ListAllFiles(ctx, "../evil")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidVaultID)
	assert.True(t, errors.Is(err, repository.ErrInvalidVaultID), "исходная причина сохраняется в цепочке")
}
