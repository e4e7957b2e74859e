package encryption

import "errors"

// Ошибки протокола маркера шифрования.
var (
	// ErrMarkerConflict - клиент прислал маркер, не совпадающий с маркером хранилища.
	ErrMarkerConflict = errors.New("маркер шифрования не совпадает с маркером хранилища")
	// ErrMarkerRequired - хранилище уже зашифровано, а клиент маркер не прислал.
	ErrMarkerRequired = errors.New("хранилище зашифровано, требуется маркер шифрования")
)

// ValidateMarker проверяет совместимость маркера шифрования запроса (incoming)
// с маркером, уже зафиксированным в хранилище (existing).
// Маркер - непрозрачный токен совместимости ключа, не криптографический секрет.
// Правила:
//   - хранилище без маркера принимает любой маркер (включая его отсутствие);
//   - если маркер зафиксирован, запрос без маркера отклоняется (ErrMarkerRequired);
//   - если маркеры заданы и различаются - отклоняется (ErrMarkerConflict);
//   - совпадающий маркер пропускается без изменений.
//
// Пустая строка приравнивается к отсутствию маркера.
// Проверка вызывается внутри той же транзакции, что и мутация, до любых записей.
func ValidateMarker(existing, incoming *string) error {
	switch {
	case !hasMarker(existing):
		// Хранилище ещё не фиксировало режим шифрования.
		return nil
	case !hasMarker(incoming):
		return ErrMarkerRequired
	case *existing != *incoming:
		return ErrMarkerConflict
	}
	return nil
}

// hasMarker сообщает, задан ли маркер (nil и "" считаются отсутствием).
func hasMarker(m *string) bool {
	return m != nil && *m != ""
}
