package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Ошибки реестра хранилищ.
var (
	// ErrStorageInit - не удалось создать или открыть базу хранилища.
	// Фатально для запроса этого хранилища, вероятнее всего проблема инфраструктуры.
	ErrStorageInit = errors.New("ошибка инициализации базы хранилища")
	// ErrInvalidVaultID - идентификатор хранилища не годится в качестве имени базы.
	ErrInvalidVaultID = errors.New("недопустимый идентификатор хранилища")
)

// Идентификатор хранилища становится именем файла базы, поэтому допускаем
// только безопасное подмножество символов (защита от обхода каталога).
var vaultIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// DBProvider выдает подключение к базе конкретного хранилища.
// Выделен в интерфейс, чтобы тесты могли подставить подготовленное
// (в том числе замоканное) подключение вместо реестра файлов.
type DBProvider interface {
	DB(vaultID string) (*sqlx.DB, error)
}

// Registry - реестр баз хранилищ: по одному файлу SQLite на идентификатор
// хранилища в базовом каталоге. Схема каждой базы создается лениво при первом
// обращении; мьютекс защищает только инициализацию, установившиеся запросы
// идут по быстрому пути под RLock.
type Registry struct {
	basePath string
	mu       sync.RWMutex
	dbs      map[string]*sqlx.DB
}

// NewRegistry создает реестр хранилищ с базами в каталоге basePath.
func NewRegistry(basePath string) *Registry {
	return &Registry{
		basePath: basePath,
		dbs:      make(map[string]*sqlx.DB),
	}
}

// DB возвращает подключение к базе хранилища, при первом обращении создавая
// файл базы и схему. Повторные вызовы идемпотентны, конкурентные первые
// обращения к одному хранилищу сериализуются мьютексом.
func (r *Registry) DB(vaultID string) (*sqlx.DB, error) {
	if !vaultIDPattern.MatchString(vaultID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVaultID, vaultID)
	}

	// Быстрый путь: база уже инициализирована.
	r.mu.RLock()
	db, ok := r.dbs[vaultID]
	r.mu.RUnlock()
	if ok {
		return db, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Перепроверка: другой запрос мог успеть инициализировать базу,
	// пока мы ждали блокировку.
	if db, ok = r.dbs[vaultID]; ok {
		return db, nil
	}

	db, err := r.initVaultDB(vaultID)
	if err != nil {
		log.Printf("[Registry] Ошибка инициализации базы хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("%w: %w", ErrStorageInit, err)
	}

	r.dbs[vaultID] = db
	log.Printf("[Registry] База хранилища %s инициализирована: %s", vaultID, r.vaultDBPath(vaultID))
	return db, nil
}

// initVaultDB создает каталог и файл базы хранилища и применяет схему.
func (r *Registry) initVaultDB(vaultID string) (*sqlx.DB, error) {
	if err := os.MkdirAll(r.basePath, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога %s: %w", r.basePath, err)
	}

	db, err := openVaultDB(r.vaultDBPath(vaultID))
	if err != nil {
		return nil, err
	}

	if err = ensureSchema(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[Registry] Ошибка закрытия базы %s после неудачной миграции: %v", vaultID, closeErr)
		}
		return nil, err
	}

	return db, nil
}

// vaultDBPath возвращает путь к файлу базы хранилища.
func (r *Registry) vaultDBPath(vaultID string) string {
	return filepath.Join(r.basePath, vaultID+".db")
}

// Close закрывает все открытые базы хранилищ.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for vaultID, db := range r.dbs {
		if err := db.Close(); err != nil {
			log.Printf("[Registry] Ошибка закрытия базы хранилища %s: %v", vaultID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		delete(r.dbs, vaultID)
	}
	return firstErr
}
