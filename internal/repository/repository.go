// Пакет repository — слой доступа к Snapshot Store для Dashboard Module.
// DM — read-only потребитель blob-контейнера со snapshot-документами,
// которые целиком производит и перезаписывает внешний upstream-процесс.
// Интерфейс покрывает ровно контракт хранилища: листинг по префиксу
// и чтение по точному ключу.
package repository

import (
	"context"
	"errors"
	"strings"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — документ не найден.
	ErrNotFound = errors.New("документ не найден")
)

// SnapshotRepository — интерфейс чтения snapshot-документов.
type SnapshotRepository interface {
	// ListKeys возвращает все ключи документов с указанным префиксом.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// Get возвращает содержимое документа по точному ключу
	// или ErrNotFound, если документа нет.
	Get(ctx context.Context, key string) ([]byte, error)
}

// --- Вспомогательные функции для ключей ---

// DeviceKey строит ключ документа устройства: <prefix>device-<id>.json.
func DeviceKey(prefix, deviceID string) string {
	return prefix + "device-" + deviceID + ".json"
}

// DeviceIDFromKey извлекает идентификатор устройства из ключа документа.
// "latest/device-E-001.json" → "E-001". Возвращает пустую строку,
// если имя документа не соответствует схеме device-<id>.json.
func DeviceIDFromKey(key string) string {
	name := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		name = key[idx+1:]
	}

	if !strings.HasPrefix(name, "device-") || !strings.HasSuffix(name, ".json") {
		return ""
	}

	id := strings.TrimSuffix(strings.TrimPrefix(name, "device-"), ".json")
	return id
}

// SnapshotFolderFromKey извлекает идентификатор snapshot-папки из ключа.
// "historical/2024-05-01T00-00/device-E-001.json" при префиксе "historical/"
// → "2024-05-01T00-00". Возвращает пустую строку, если ключ не содержит
// папки под указанным префиксом.
func SnapshotFolderFromKey(key, historicalPrefix string) string {
	rest, ok := strings.CutPrefix(key, historicalPrefix)
	if !ok {
		return ""
	}

	folder, _, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	return folder
}
