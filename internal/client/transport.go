// Package client — программный клиент трекера задач: хранилище сессии,
// сервис входа и репозиторий задач с локальным кэшем поверх HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Transport — HTTP-транспорт клиента. Редиректы не следуются автоматически:
// сервер отвечает 303 на создание задачи, и клиенту нужен сам этот статус.
type Transport struct {
	baseURL    string
	httpClient *http.Client
}

func NewTransport(baseURL string) *Transport {
	return &Transport{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// do отправляет запрос с JSON-телом (body может быть nil) и возвращает ответ.
// Закрыть resp.Body обязан вызывающий.
func (t *Transport) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// getJSON выполняет GET и декодирует тело ответа в out.
func (t *Transport) getJSON(ctx context.Context, path string, out any) error {
	resp, err := t.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transport: GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: GET %s: decode: %w", path, err)
	}
	return nil
}
