package models

// VersionData - одна версия файла в составе запроса uploadChanges.
// Клиент присваивает stableId сам (стабильный хеш, не зависящий от
// содержимого), сервер ему доверяет как ключу, но не интерпретирует.
type VersionData struct {
	StableID    string `json:"stableId"`
	FilePath    string `json:"filePath"`
	Content     string `json:"content"`
	Mtime       int64  `json:"mtime"`
	ContentHash string `json:"contentHash"`
	IsBinary    int    `json:"isBinary"`
	Deleted     bool   `json:"deleted"`
}

// FileContent - данные по одному запрошенному пути в ответе downloadFiles.
type FileContent struct {
	EncryptedFilePath string `db:"encryptedFilePath" json:"encryptedFilePath"`
	EncryptedContent  string `db:"encryptedContent"  json:"encryptedContent"`
	Mtime             int64  `db:"mtime"             json:"mtime"`
	ContentHash       string `db:"contentHash"       json:"contentHash"`
	IsBinary          int    `db:"isBinary"          json:"isBinary"`
}

// HistoryEntry - одна историческая версия файла в ответе fileHistory.
// version_time назначается сервером в момент загрузки (UTC, ISO-8601).
type HistoryEntry struct {
	FilePath    string `db:"encryptedFilePath" json:"filePath"`
	Content     string `db:"encryptedContent"  json:"content"`
	Mtime       int64  `db:"mtime"             json:"mtime"`
	ContentHash string `db:"contentHash"       json:"contentHash"`
	IsBinary    int    `db:"isBinary"          json:"isBinary"`
	VersionTime string `db:"version_time"      json:"version_time"`
}

// FileListEntry - элемент списка всех файлов хранилища (allFiles).
type FileListEntry struct {
	StableID                 string `db:"stableId"                 json:"stableId"`
	CurrentEncryptedFilePath string `db:"currentEncryptedFilePath" json:"currentEncryptedFilePath"`
}
