package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const (
	// Порт по умолчанию для HTTP-сервера синхронизации.
	defaultServerPort = "32400"
	// Каталог с базами хранилищ по умолчанию.
	defaultDBBasePath = "./data"

	// Переменные окружения.
	envServerPort  = "SERVER_PORT"
	envDBBasePath  = "DB_BASE_PATH"
	envAPIKey      = "API_KEY" //nolint:gosec // Ложное срабатывание, это имя переменной окружения
	envTLSCertFile = "TLS_CERT_FILE"
	envTLSKeyFile  = "TLS_KEY_FILE"
)

// config хранит конфигурацию сервера.
type config struct {
	Port       string
	DBBasePath string
	APIKey     string
	CertFile   string
	KeyFile    string
}

// parseFlags разбирает флаги и переменные окружения, возвращает config или ошибку.
// Приоритет: флаг, затем переменная окружения, затем значение по умолчанию.
func parseFlags() (*config, error) {
	cfg := &config{}

	// Определяем флаги
	flag.StringVar(&cfg.Port, "port", "",
		fmt.Sprintf("Порт для запуска сервера (env: %s, default: %s)", envServerPort, defaultServerPort))
	flag.StringVar(&cfg.DBBasePath, "db-base-path", "",
		fmt.Sprintf("Каталог с базами хранилищ (env: %s, default: %s)", envDBBasePath, defaultDBBasePath))
	flag.StringVar(&cfg.APIKey, "api-key", "",
		fmt.Sprintf("Ключ API для аутентификации клиентов (env: %s)", envAPIKey))
	flag.StringVar(&cfg.CertFile, "cert-file", "",
		fmt.Sprintf("Путь к файлу TLS-сертификата, включает HTTPS (env: %s)", envTLSCertFile))
	flag.StringVar(&cfg.KeyFile, "key-file", "",
		fmt.Sprintf("Путь к файлу TLS-ключа (env: %s)", envTLSKeyFile))

	// Парсим флаги
	flag.Parse()

	// Применяем переменные окружения, если флаги не заданы
	if cfg.Port == "" {
		if value, ok := os.LookupEnv(envServerPort); ok {
			cfg.Port = value
		} else {
			cfg.Port = defaultServerPort
		}
	}
	if cfg.DBBasePath == "" {
		if value, ok := os.LookupEnv(envDBBasePath); ok {
			cfg.DBBasePath = value
		} else {
			cfg.DBBasePath = defaultDBBasePath
		}
	}
	if cfg.APIKey == "" {
		if value, ok := os.LookupEnv(envAPIKey); ok {
			cfg.APIKey = value
		}
	}
	if cfg.CertFile == "" {
		if value, ok := os.LookupEnv(envTLSCertFile); ok {
			cfg.CertFile = value
		}
	}
	if cfg.KeyFile == "" {
		if value, ok := os.LookupEnv(envTLSKeyFile); ok {
			cfg.KeyFile = value
		}
	}

	// Проверяем обязательные параметры
	if cfg.APIKey == "" {
		return nil, errors.New("не указан ключ API (--api-key или " + envAPIKey + ")")
	}
	// TLS включается только парой сертификат+ключ
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errors.New("для HTTPS нужны оба параметра: --cert-file и --key-file")
	}

	return cfg, nil
}

// useTLS сообщает, запускать ли сервер с TLS.
func (c *config) useTLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}
