package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"github.com/maynagashev/fastsync/internal/models"
)

// Заголовок с ключом API.
const apiKeyHeader = "X-API-Key"

// APIKey возвращает middleware, пропускающий запрос только с верным ключом API.
// Это внешний шлюз аутентификации: ядро синхронизации вызывается строго после
// успешной проверки. Сравнение за постоянное время, чтобы не утекала длина
// совпавшего префикса.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(apiKeyHeader)
			if provided == "" {
				log.Printf("[AuthMiddleware] Заголовок %s отсутствует", apiKeyHeader)
				writeUnauthorized(w)
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				log.Println("[AuthMiddleware] Предоставлен неверный ключ API")
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized отправляет 401 в формате ошибок API.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Detail: "Invalid API Key"}); err != nil {
		log.Printf("[AuthMiddleware] Ошибка кодирования ответа 401: %v", err)
	}
}
