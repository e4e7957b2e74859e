package cache

import (
	"log"
	"sync"

	"github.com/maynagashev/fastsync/internal/models"
)

// Cache определяет кеш снимков состояния хранилищ.
// Реализация подставляется через конструктор сервиса, чтобы в тестах можно
// было использовать детерминированную подмену, а в продакшене при
// необходимости заменить на распределённый кеш.
type Cache interface {
	// Get возвращает кешированный снимок состояния или (nil, false) при промахе.
	Get(vaultID string) (*models.StateResponse, bool)
	// Set сохраняет снимок состояния для хранилища.
	Set(vaultID string, state *models.StateResponse)
	// Invalidate удаляет снимок хранилища из кеша.
	// Вызывается после коммита каждой успешной мутации.
	Invalidate(vaultID string)
}

// memoryCache - процессный кеш: общая map под одним мьютексом.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*models.StateResponse
}

// NewMemoryCache создает пустой кеш состояний в памяти.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]*models.StateResponse)}
}

func (c *memoryCache) Get(vaultID string) (*models.StateResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.entries[vaultID]
	return state, ok
}

func (c *memoryCache) Set(vaultID string, state *models.StateResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[vaultID] = state
}

func (c *memoryCache) Invalidate(vaultID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[vaultID]; ok {
		delete(c.entries, vaultID)
		log.Printf("[StateCache] Кеш состояния хранилища %s инвалидирован", vaultID)
	}
}
