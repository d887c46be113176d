// Пакет fixclient — HTTP-клиент сервиса коррекции файлов.
// Операции: Fix (POST /api/fix), Health (GET /api/health).
package fixclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/datafixer/internal/domain/model"
)

// Ошибки клиента сервиса коррекции.
var (
	// ErrResponseTooLarge — ответ сервиса превысил лимит размера.
	ErrResponseTooLarge = errors.New("ответ сервиса коррекции превысил лимит размера")
	// ErrFixRejected — сервис ответил success=false (содержимое не исправимо).
	ErrFixRejected = errors.New("сервис коррекции отклонил содержимое")
)

// fixRequest — тело запроса POST /api/fix.
type fixRequest struct {
	Content  string `json:"content"`
	FileType string `json:"fileType"`
}

// fixResponse — тело ответа сервиса коррекции.
type fixResponse struct {
	Success      bool               `json:"success"`
	FixedContent string             `json:"fixedContent"`
	Changes      []model.FileChange `json:"changes"`
	Error        string             `json:"error"`
}

// FixResult — результат успешного исправления.
type FixResult struct {
	// FixedContent — исправленное содержимое целиком.
	FixedContent string
	// Changes — упорядоченный список исправлений.
	Changes []model.FileChange
}

// Client — HTTP-клиент сервиса коррекции.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	maxResponseSize int64
	logger          *slog.Logger
}

// New создаёт клиент сервиса коррекции.
// baseURL — адрес сервиса без trailing slash (DF_FIXER_URL).
// timeout — таймаут одного запроса исправления (DF_FIXER_TIMEOUT).
// maxResponseSize — лимит размера тела ответа (DF_MAX_FIX_RESPONSE_SIZE).
func New(baseURL string, timeout time.Duration, maxResponseSize int64, logger *slog.Logger) *Client {
	return &Client{
		baseURL:         baseURL,
		httpClient:      &http.Client{Timeout: timeout},
		maxResponseSize: maxResponseSize,
		logger:          logger.With(slog.String("component", "fix_client")),
	}
}

// Fix отправляет содержимое на исправление.
// При success=false возвращает ErrFixRejected с сообщением сервиса.
func (c *Client) Fix(ctx context.Context, content string, fileType model.FileType) (*FixResult, error) {
	body, err := json.Marshal(fixRequest{
		Content:  content,
		FileType: string(fileType),
	})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса исправления: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/fix", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("создание запроса исправления: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос к сервису коррекции: %w", err)
	}
	defer resp.Body.Close()

	// Лимит на размер ответа: читаем на один байт больше,
	// чтобы отличить ровно лимит от превышения.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа сервиса коррекции: %w", err)
	}
	if int64(len(respBody)) > c.maxResponseSize {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("сервис коррекции вернул статус %d: %s", resp.StatusCode, truncate(respBody, 256))
	}

	var fr fixResponse
	if err := json.Unmarshal(respBody, &fr); err != nil {
		return nil, fmt.Errorf("декодирование ответа сервиса коррекции: %w", err)
	}

	// Пустое fixedContent при success=true трактуется как отказ:
	// сервис обязан вернуть содержимое целиком.
	if !fr.Success || fr.FixedContent == "" {
		if fr.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrFixRejected, fr.Error)
		}
		return nil, ErrFixRejected
	}

	changes := fr.Changes
	if changes == nil {
		changes = []model.FileChange{}
	}
	return &FixResult{
		FixedContent: fr.FixedContent,
		Changes:      changes,
	}, nil
}

// Health проверяет доступность сервиса коррекции.
// GET /api/health — используется dephealth-мониторингом.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("создание запроса health: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос health к сервису коррекции: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // тело health не используется

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервис коррекции вернул статус %d", resp.StatusCode)
	}
	return nil
}

// BaseURL возвращает адрес сервиса коррекции (для лейблов dephealth).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ReadinessChecker — проверка доступности сервиса коррекции для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	client *Client
}

// NewReadinessChecker создаёт проверку готовности сервиса коррекции.
func NewReadinessChecker(client *Client) *ReadinessChecker {
	return &ReadinessChecker{client: client}
}

// CheckReady проверяет health endpoint сервиса коррекции.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.client.Health(ctx); err != nil {
		return "fail", fmt.Sprintf("сервис коррекции недоступен: %v", err)
	}
	return "ok", "сервис коррекции доступен"
}

// truncate обрезает тело ответа для сообщения об ошибке.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
