// normalize.go — нормализация snapshot-документов в DeviceRecord.
// Upstream-продюсеры пишут документы в трёх формах: плоский объект,
// объект с полем records (список JSON-строк или вложенных объектов),
// либо голый массив объектов. Все три сводятся к единому виду.
package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bigkaa/enerstat/dashboard-module/internal/domain/model"
)

// rawRecord — одно показание в произвольной upstream-форме.
type rawRecord struct {
	DeviceID            string   `json:"device_id"`
	TotalKWh            *float64 `json:"total_kwh"`
	GenerationTimestamp *string  `json:"generation_timestamp"`
	// Timestamp — альтернативное имя поля времени у части продюсеров.
	Timestamp *string `json:"timestamp"`
}

// rawDocument — объект-обёртка: либо плоские поля показания,
// либо массив records.
type rawDocument struct {
	rawRecord
	Records []json.RawMessage `json:"records"`
}

// NormalizeDocument приводит один snapshot-документ к списку DeviceRecord.
// fallbackDeviceID — идентификатор устройства, выведенный из ключа
// документа; применяется, когда запись не содержит собственного device_id
// (источник истины — ключ). Нечитаемая внутренняя запись пропускается
// молча и не валит нормализацию документа. Ошибка возвращается только
// для неразбираемого JSON верхнего уровня.
// Многозаписный результат сортируется по времени по возрастанию;
// записи без времени считаются самыми старыми и идут первыми.
func NormalizeDocument(data []byte, fallbackDeviceID string) ([]model.DeviceRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("пустой документ")
	}

	var records []model.DeviceRecord

	if trimmed[0] == '[' {
		// Форма (c): голый массив записей
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, fmt.Errorf("разбор массива записей: %w", err)
		}
		for _, elem := range elements {
			if rec, ok := decodeInnerRecord(elem, fallbackDeviceID); ok {
				records = append(records, rec)
			}
		}
	} else {
		var doc rawDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("разбор документа: %w", err)
		}

		parentDeviceID := firstNonEmpty(doc.DeviceID, fallbackDeviceID)

		if doc.Records != nil {
			// Форма (b): объект с массивом records
			for _, elem := range doc.Records {
				if rec, ok := decodeInnerRecord(elem, parentDeviceID); ok {
					records = append(records, rec)
				}
			}
		} else {
			// Форма (a): плоский объект — одна запись
			records = append(records, toDeviceRecord(doc.rawRecord, fallbackDeviceID))
		}
	}

	sortByTimestamp(records)
	return records, nil
}

// decodeInnerRecord разбирает один элемент массива записей.
// Элемент — либо JSON-строка с закодированной записью, либо сам объект
// записи. Неразбираемый элемент пропускается (ok = false).
func decodeInnerRecord(elem json.RawMessage, fallbackDeviceID string) (model.DeviceRecord, bool) {
	payload := []byte(elem)

	// Запись, закодированная строкой: сначала достаём строку,
	// затем разбираем её содержимое.
	var encoded string
	if err := json.Unmarshal(elem, &encoded); err == nil {
		payload = []byte(encoded)
	}

	var rec rawRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return model.DeviceRecord{}, false
	}

	return toDeviceRecord(rec, fallbackDeviceID), true
}

// toDeviceRecord конвертирует raw-запись в DeviceRecord.
// Приоритет device_id: поле записи → fallback из ключа → пусто.
func toDeviceRecord(rec rawRecord, fallbackDeviceID string) model.DeviceRecord {
	return model.DeviceRecord{
		DeviceID:            firstNonEmpty(rec.DeviceID, fallbackDeviceID),
		TotalKWh:            rec.TotalKWh,
		GenerationTimestamp: effectiveTimestamp(rec),
	}
}

// effectiveTimestamp выбирает поле времени: generation_timestamp → timestamp.
func effectiveTimestamp(rec rawRecord) *string {
	if rec.GenerationTimestamp != nil {
		return rec.GenerationTimestamp
	}
	return rec.Timestamp
}

// sortByTimestamp сортирует записи по времени по возрастанию.
// Запись без времени считается старше любой датированной и уходит
// в начало; равные timestamps сохраняют порядок появления.
func sortByTimestamp(records []model.DeviceRecord) {
	if len(records) < 2 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].GenerationTimestamp, records[j].GenerationTimestamp
		switch {
		case ti == nil:
			return tj != nil
		case tj == nil:
			return false
		default:
			return *ti < *tj
		}
	})
}

// firstNonEmpty возвращает первое непустое значение.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
