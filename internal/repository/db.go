package repository

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Драйвер SQLite, импортируем для регистрации
)

// Таймаут ожидания снятия блокировки базы занятым писателем.
const busyTimeout = 5 * time.Second

// openVaultDB открывает базу SQLite одного хранилища.
// Внешние ключи в SQLite по умолчанию выключены, а каскадное удаление версий
// при уничтожении логического файла зависит от них. Настройки передаются
// через DSN: так драйвер применяет их к каждому соединению пула, а не только
// к тому, которое случайно обслужило бы разовый PRAGMA-запрос.
func openVaultDB(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d", path, busyTimeout.Milliseconds())
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы %s: %w", path, err)
	}
	return db, nil
}
