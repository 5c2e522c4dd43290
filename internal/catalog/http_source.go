package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hitoshi/learnhub/internal/model"
)

// maxCatalogSize はカタログレスポンスの読み取り上限（10MB）。
const maxCatalogSize = 10 << 20

// HTTPSource はカタログサービスの GET /courses からコースを取得する。
type HTTPSource struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPSource はHTTPSourceを生成する。
func NewHTTPSource(httpClient *http.Client, baseURL string) *HTTPSource {
	return &HTTPSource{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// FetchCourses はコース一覧を一括取得する。
// レスポンスは配列または {"courses": [...]} のどちらの形式も受け付ける。
func (s *HTTPSource) FetchCourses(ctx context.Context) ([]model.Course, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/courses", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Learnhub/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	return decodeCourses(body)
}

func decodeCourses(body []byte) ([]model.Course, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty catalog response")
	}

	if trimmed[0] == '[' {
		var courses []model.Course
		if err := json.Unmarshal(trimmed, &courses); err != nil {
			return nil, fmt.Errorf("failed to decode catalog: %w", err)
		}
		return courses, nil
	}

	var wrapped struct {
		Courses []model.Course `json:"courses"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if wrapped.Courses == nil {
		return nil, fmt.Errorf("catalog response has no courses field")
	}
	return wrapped.Courses, nil
}
