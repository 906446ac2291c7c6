// azure.go — реализация SnapshotRepository поверх Azure Blob Storage.
// Подключение через connection string, листинг flat-пейджером,
// чтение через DownloadStream. Только операции чтения.
package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureSnapshotRepository — SnapshotRepository поверх Azure Blob Storage.
type AzureSnapshotRepository struct {
	client    *azblob.Client
	container string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAzureSnapshotRepository создаёт репозиторий для blob-контейнера.
// connectionString — connection string Storage Account.
// container — имя контейнера со snapshot-документами.
// timeout — таймаут одной операции чтения (DM_STORAGE_TIMEOUT).
func NewAzureSnapshotRepository(
	connectionString string,
	container string,
	timeout time.Duration,
	logger *slog.Logger,
) (*AzureSnapshotRepository, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("создание Azure Blob клиента: %w", err)
	}

	return &AzureSnapshotRepository{
		client:    client,
		container: container,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "azure_repository")),
	}, nil
}

// ListKeys возвращает все ключи документов с указанным префиксом.
// Пейджинг скрыт внутри: наборы данных малы (десятки устройств,
// единицы snapshot-папок), поэтому результат собирается целиком.
func (r *AzureSnapshotRepository) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pager := r.client.NewListBlobsFlatPager(r.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	var keys []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("листинг blob-контейнера %s (префикс %q): %w", r.container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}

	return keys, nil
}

// Get возвращает содержимое документа по точному ключу.
// Отсутствующий blob маппится в ErrNotFound.
func (r *AzureSnapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.DownloadStream(ctx, r.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("чтение blob %s/%s: %w", r.container, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение тела blob %s/%s: %w", r.container, key, err)
	}

	return data, nil
}

// --- ReadinessChecker для Snapshot Store ---

// CheckReady проверяет доступность контейнера одной страницей листинга.
func (r *AzureSnapshotRepository) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	maxResults := int32(1)
	pager := r.client.NewListBlobsFlatPager(r.container, &azblob.ListBlobsFlatOptions{
		MaxResults: &maxResults,
	})

	if pager.More() {
		if _, err := pager.NextPage(ctx); err != nil {
			return "fail", fmt.Sprintf("контейнер %s недоступен: %v", r.container, err)
		}
	}

	return "ok", fmt.Sprintf("контейнер %s доступен", r.container)
}
