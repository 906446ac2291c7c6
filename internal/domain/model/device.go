// Пакет model — доменные модели Dashboard Module.
// Identity — проверенная личность вызывающего, DeviceRecord — нормализованное
// показание одного устройства.
package model

// Role — роль вызывающего, вычисленная из групп Cognito.
type Role string

const (
	// RoleAdmin — администратор, видит все устройства и историю.
	RoleAdmin Role = "admin"
	// RoleUser — обычный пользователь, видит только собственное устройство.
	RoleUser Role = "user"
	// RoleUnknown — роль не определена, доступ к данным запрещён.
	RoleUnknown Role = "unknown"
)

// Identity — личность вызывающего, выведенная из проверенных claims JWT.
// Создаётся один раз на запрос, далее неизменна, нигде не сохраняется.
type Identity struct {
	// Email — email из claims (email → preferred_username → cognito:username → "unknown")
	Email string
	// Subject — sub из JWT (Cognito user ID)
	Subject string
	// Role — роль, вычисленная из cognito:groups
	Role Role
	// DeviceID — значение device claim (custom:device_id), nil если отсутствует
	DeviceID *string
}

// DeviceRecord — одно нормализованное показание устройства.
// Folder заполняется только для исторических записей и содержит
// идентификатор snapshot-папки, из которой запись получена.
type DeviceRecord struct {
	// DeviceID — идентификатор устройства (из документа или из ключа blob)
	DeviceID string `json:"device_id"`
	// TotalKWh — суммарное потребление, nil если поле отсутствует в документе
	TotalKWh *float64 `json:"total_kwh"`
	// GenerationTimestamp — время формирования показания, nil если отсутствует
	GenerationTimestamp *string `json:"generation_timestamp"`
	// Folder — snapshot-папка происхождения (только для /api/history)
	Folder *string `json:"folder,omitempty"`
}
