package models

// FileState представляет текущее логическое состояние файла в хранилище
// (одна строка таблицы vault_files на каждый stableId).
// Содержимое и пути зашифрованы на клиенте, сервер их не расшифровывает.
type FileState struct {
	StableID                 string `db:"stableId"                 json:"-"`
	CurrentEncryptedFilePath string `db:"currentEncryptedFilePath" json:"currentEncryptedFilePath"`
	CurrentMtime             int64  `db:"currentMtime"             json:"currentMtime"`
	CurrentContentHash       string `db:"currentContentHash"       json:"currentContentHash"`
	IsBinary                 int    `db:"isBinary"                 json:"isBinary"`
	Deleted                  bool   `db:"deleted"                  json:"deleted"`
}

// StateResponse - полный снимок состояния хранилища: все логические файлы
// по stableId плюс текущий маркер шифрования (nil, если маркер не задан).
type StateResponse struct {
	State                map[string]FileState `json:"state"`
	EncryptionValidation *string              `json:"encryptionValidation"`
}
