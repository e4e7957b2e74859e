package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maynagashev/fastsync/internal/models"
	"github.com/maynagashev/fastsync/internal/repository"
	"github.com/maynagashev/fastsync/internal/services"
)

// Тексты ошибок в ответах - фиксированные, на них завязаны клиенты.
const (
	detailKeyMismatch      = "Encryption Key Mismatch"
	detailEncryptionNeeded = "Encryption Mismatch: Server expects encrypted data."
	detailValidation       = "Validation Error"
	detailInvalidVaultID   = "Invalid vault ID"
	detailDBInit           = "Database initialization failed"
	detailInternal         = "Internal Server Error"
)

// SyncHandler обрабатывает HTTP-запросы синхронизации хранилищ.
type SyncHandler struct {
	syncService services.SyncService
}

// NewSyncHandler создает новый экземпляр SyncHandler.
func NewSyncHandler(ss services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: ss}
}

// UploadChanges обрабатывает POST запрос на загрузку пакета версий файлов.
func (h *SyncHandler) UploadChanges(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")

	var req models.UploadChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SyncHandler:UploadChanges] Ошибка декодирования запроса для хранилища %s: %v", vaultID, err)
		writeError(w, http.StatusUnprocessableEntity, detailValidation)
		return
	}

	err := h.syncService.UploadChanges(r.Context(), vaultID, &req)
	if err != nil {
		h.writeSyncError(w, "UploadChanges", vaultID, err)
		return
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success"})
}

// GetState обрабатывает GET запрос на получение снимка состояния хранилища.
func (h *SyncHandler) GetState(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")

	state, err := h.syncService.GetState(r.Context(), vaultID)
	if err != nil {
		h.writeSyncError(w, "GetState", vaultID, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// DownloadFiles обрабатывает POST запрос на выдачу содержимого по путям.
func (h *SyncHandler) DownloadFiles(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")

	var req models.DownloadFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SyncHandler:DownloadFiles] Ошибка декодирования запроса для хранилища %s: %v", vaultID, err)
		writeError(w, http.StatusUnprocessableEntity, detailValidation)
		return
	}

	resp, err := h.syncService.DownloadFiles(r.Context(), vaultID, req.EncryptedFilePaths)
	if err != nil {
		h.writeSyncError(w, "DownloadFiles", vaultID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// FileHistory обрабатывает GET запрос на историю версий файла.
func (h *SyncHandler) FileHistory(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")
	stableID := chi.URLParam(r, "stableID")

	history, err := h.syncService.GetFileHistory(r.Context(), vaultID, stableID)
	if err != nil {
		h.writeSyncError(w, "FileHistory", vaultID, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// AllFiles обрабатывает GET запрос на список всех файлов хранилища.
func (h *SyncHandler) AllFiles(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")

	files, err := h.syncService.ListAllFiles(r.Context(), vaultID)
	if err != nil {
		h.writeSyncError(w, "AllFiles", vaultID, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// ForcePushReset обрабатывает POST запрос на полный сброс хранилища.
func (h *SyncHandler) ForcePushReset(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")

	var req models.ForcePushResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SyncHandler:ForcePushReset] Ошибка декодирования запроса для хранилища %s: %v", vaultID, err)
		writeError(w, http.StatusUnprocessableEntity, detailValidation)
		return
	}

	err := h.syncService.ForcePushReset(r.Context(), vaultID, req.EncryptionValidation)
	if err != nil {
		h.writeSyncError(w, "ForcePushReset", vaultID, err)
		return
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "reset_success"})
}

// Health обрабатывает GET запрос проверки живости сервера.
func (h *SyncHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "ok"})
}

// writeSyncError переводит ошибку сервиса в HTTP-ответ.
// Категории стабильны: клиент по коду и detail отличает «почини ключ
// шифрования» от «повтори запрос» и от ошибки сервера.
func (h *SyncHandler) writeSyncError(w http.ResponseWriter, op, vaultID string, err error) {
	switch {
	case errors.Is(err, services.ErrEncryptionConflict):
		log.Printf("[SyncHandler:%s] Конфликт маркера шифрования для хранилища %s", op, vaultID)
		writeError(w, http.StatusConflict, detailKeyMismatch)
	case errors.Is(err, services.ErrEncryptionRequired):
		log.Printf("[SyncHandler:%s] Запрос без маркера к зашифрованному хранилищу %s", op, vaultID)
		writeError(w, http.StatusConflict, detailEncryptionNeeded)
	case errors.Is(err, services.ErrInvalidVaultID):
		log.Printf("[SyncHandler:%s] Недопустимый идентификатор хранилища %q", op, vaultID)
		writeError(w, http.StatusBadRequest, detailInvalidVaultID)
	case errors.Is(err, repository.ErrStorageInit):
		log.Printf("[SyncHandler:%s] Ошибка инициализации базы хранилища %s: %v", op, vaultID, err)
		writeError(w, http.StatusInternalServerError, detailDBInit)
	default:
		log.Printf("[SyncHandler:%s] Внутренняя ошибка для хранилища %s: %v", op, vaultID, err)
		writeError(w, http.StatusInternalServerError, detailInternal)
	}
}

// writeJSON отправляет успешный JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[SyncHandler] Ошибка кодирования ответа: %v", err)
	}
}

// writeError отправляет JSON-ответ с ошибкой в формате {"detail": ...}.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Detail: detail}); err != nil {
		log.Printf("[SyncHandler] Ошибка кодирования ответа с ошибкой: %v", err)
	}
}
