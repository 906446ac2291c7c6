// telemetry.go — сервис авторизации по scope и выборки показаний.
// Маппит Identity в область видимости (все устройства / своё устройство),
// читает документы из Snapshot Store и возвращает нормализованные записи.
// Многодокументные выборки — best-effort: нечитаемый документ
// пропускается с логом и метрикой, запрос не валится.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/enerstat/dashboard-module/internal/domain/model"
	"github.com/bigkaa/enerstat/dashboard-module/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrForbiddenRole — роль вызывающего не даёт доступа к запрошенным данным.
	ErrForbiddenRole = errors.New("недостаточно прав для доступа к данным")
	// ErrForbiddenNoDevice — валидный токен без device claim: scope пуст.
	ErrForbiddenNoDevice = errors.New("в токене отсутствует device claim")
	// ErrNotFound — данные устройства не найдены.
	ErrNotFound = errors.New("данные устройства не найдены")
)

// Prometheus-метрики выборки данных.
var (
	dataRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_data_requests_total",
		Help: "Общее количество выборок данных по области видимости.",
	}, []string{"scope"})

	snapshotFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_snapshot_fetch_duration_seconds",
		Help:    "Длительность чтения одного snapshot-документа.",
		Buckets: prometheus.DefBuckets,
	})

	snapshotDocumentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_snapshot_documents_skipped_total",
		Help: "Количество пропущенных (нечитаемых или некорректных) документов.",
	})
)

// TelemetryService — сервис выборки показаний по области видимости Identity.
type TelemetryService struct {
	repo             repository.SnapshotRepository
	latestPrefix     string
	historicalPrefix string
	logger           *slog.Logger
}

// NewTelemetryService создаёт сервис выборки показаний.
func NewTelemetryService(
	repo repository.SnapshotRepository,
	latestPrefix string,
	historicalPrefix string,
	logger *slog.Logger,
) *TelemetryService {
	return &TelemetryService{
		repo:             repo,
		latestPrefix:     latestPrefix,
		historicalPrefix: historicalPrefix,
		logger:           logger.With(slog.String("component", "telemetry_service")),
	}
}

// Latest возвращает актуальные показания в области видимости identity.
// admin — все устройства, отсортированные по device_id;
// user с device claim — ровно своё устройство;
// user без device claim — ErrForbiddenNoDevice;
// роль unknown — ErrForbiddenRole.
func (s *TelemetryService) Latest(ctx context.Context, identity *model.Identity) ([]model.DeviceRecord, error) {
	switch identity.Role {
	case model.RoleAdmin:
		dataRequestsTotal.WithLabelValues("admin_all").Inc()
		return s.latestAll(ctx, identity)

	case model.RoleUser:
		if identity.DeviceID == nil {
			return nil, ErrForbiddenNoDevice
		}
		dataRequestsTotal.WithLabelValues("user_device").Inc()
		return s.latestDevice(ctx, identity, *identity.DeviceID)

	default:
		return nil, ErrForbiddenRole
	}
}

// History возвращает показания из limit последних snapshot-папок.
// История доступна только admin — любая другая роль получает
// ErrForbiddenRole независимо от device claim.
func (s *TelemetryService) History(ctx context.Context, identity *model.Identity, limit int) ([]model.DeviceRecord, error) {
	if identity.Role != model.RoleAdmin {
		return nil, ErrForbiddenRole
	}
	dataRequestsTotal.WithLabelValues("history").Inc()

	keys, err := s.repo.ListKeys(ctx, s.historicalPrefix)
	if err != nil {
		return nil, fmt.Errorf("листинг исторических snapshot: %w", err)
	}

	folders := s.recentFolders(keys, limit)

	// Ключи по папкам, внутри папки — по возрастанию (порядок устройств)
	byFolder := make(map[string][]string, len(folders))
	for _, key := range keys {
		folder := repository.SnapshotFolderFromKey(key, s.historicalPrefix)
		if folder != "" {
			byFolder[folder] = append(byFolder[folder], key)
		}
	}

	var records []model.DeviceRecord
	for _, folder := range folders {
		folderKeys := byFolder[folder]
		sort.Strings(folderKeys)

		for _, key := range folderKeys {
			recs, ok := s.fetchDocument(ctx, key)
			if !ok {
				continue
			}
			for _, rec := range recs {
				if rec.DeviceID == "" {
					continue
				}
				f := folder
				rec.Folder = &f
				records = append(records, rec)
			}
		}
	}

	s.logger.Info("Выборка истории выполнена",
		slog.String("email", identity.Email),
		slog.Int("folders", len(folders)),
		slog.Int("records", len(records)),
	)

	return records, nil
}

// latestAll — scope "все устройства": один запись на устройство,
// сортировка по device_id по возрастанию.
func (s *TelemetryService) latestAll(ctx context.Context, identity *model.Identity) ([]model.DeviceRecord, error) {
	keys, err := s.repo.ListKeys(ctx, s.latestPrefix)
	if err != nil {
		return nil, fmt.Errorf("листинг актуальных документов: %w", err)
	}

	records := make([]model.DeviceRecord, 0, len(keys))
	for _, key := range keys {
		recs, ok := s.fetchDocument(ctx, key)
		if !ok {
			continue
		}
		if rec, found := mostRecent(recs); found {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DeviceID < records[j].DeviceID
	})

	s.logger.Info("Выборка актуальных данных выполнена",
		slog.String("email", identity.Email),
		slog.String("scope", "admin_all"),
		slog.Int("records", len(records)),
	)

	return records, nil
}

// latestDevice — scope "только своё устройство": ровно один документ
// по точному ключу. Здесь ошибки не пропускаются: отказ чтения
// единственного документа — отказ всего запроса.
func (s *TelemetryService) latestDevice(ctx context.Context, identity *model.Identity, deviceID string) ([]model.DeviceRecord, error) {
	key := repository.DeviceKey(s.latestPrefix, deviceID)

	data, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("чтение документа %s: %w", key, err)
	}

	recs, err := NormalizeDocument(data, deviceID)
	if err != nil {
		return nil, fmt.Errorf("нормализация документа %s: %w", key, err)
	}

	rec, found := mostRecent(recs)
	if !found {
		return nil, fmt.Errorf("документ %s не содержит ни одной записи", key)
	}

	s.logger.Info("Выборка актуальных данных выполнена",
		slog.String("email", identity.Email),
		slog.String("scope", "user_device"),
		slog.String("device_id", deviceID),
	)

	return []model.DeviceRecord{rec}, nil
}

// fetchDocument читает и нормализует один документ для многодокументной
// выборки. При любой ошибке документ пропускается: лог + метрика,
// ok = false. Доступность агрегата важнее полноты.
func (s *TelemetryService) fetchDocument(ctx context.Context, key string) ([]model.DeviceRecord, bool) {
	start := time.Now()

	data, err := s.repo.Get(ctx, key)
	snapshotFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		snapshotDocumentsSkipped.Inc()
		s.logger.Warn("Документ пропущен: ошибка чтения",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	recs, err := NormalizeDocument(data, repository.DeviceIDFromKey(key))
	if err != nil {
		snapshotDocumentsSkipped.Inc()
		s.logger.Warn("Документ пропущен: некорректное содержимое",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	return recs, true
}

// recentFolders возвращает не более limit последних snapshot-папок.
// Идентификаторы папок по построению начинаются с timestamp, поэтому
// лексикографический порядок по убыванию — это порядок от новых к старым.
func (s *TelemetryService) recentFolders(keys []string, limit int) []string {
	seen := make(map[string]bool)
	var folders []string
	for _, key := range keys {
		folder := repository.SnapshotFolderFromKey(key, s.historicalPrefix)
		if folder != "" && !seen[folder] {
			seen[folder] = true
			folders = append(folders, folder)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(folders)))

	if len(folders) > limit {
		folders = folders[:limit]
	}
	return folders
}

// mostRecent выбирает самую свежую запись документа с непустым device_id.
// Записи уже отсортированы нормализатором по времени по возрастанию,
// поэтому подходит последняя подходящая.
func mostRecent(records []model.DeviceRecord) (model.DeviceRecord, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].DeviceID != "" {
			return records[i], true
		}
	}
	return model.DeviceRecord{}, false
}
