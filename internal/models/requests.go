package models

// UploadChangesRequest - тело запроса uploadChanges.
type UploadChangesRequest struct {
	Data                 []VersionData `json:"data"`
	EncryptionValidation *string       `json:"encryptionValidation,omitempty"`
}

// DownloadFilesRequest - тело запроса downloadFiles.
type DownloadFilesRequest struct {
	EncryptedFilePaths []string `json:"encryptedFilePaths"`
}

// DownloadFilesResponse - ответ downloadFiles.
type DownloadFilesResponse struct {
	Files []FileContent `json:"files"`
}

// ForcePushResetRequest - тело запроса forcePushReset.
type ForcePushResetRequest struct {
	EncryptionValidation *string `json:"encryptionValidation,omitempty"`
}

// StatusResponse - типовой ответ мутирующих операций ("success", "reset_success", "ok").
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse - тело ответа с ошибкой, формат совместим с клиентами.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
