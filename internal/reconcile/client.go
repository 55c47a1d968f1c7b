package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"campusattend/internal/attendance"
)

// Client is the HTTP-backed Fetcher and Saver a faculty viewer uses
// against the attendance API.
type Client struct {
	BaseURL string
	Token   string // bearer token for the faculty user
	HTTP    *http.Client
}

// NewClient creates a client with a short timeout; a poll slower than the
// poll interval is as good as failed.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP: &http.Client{
			Timeout: 4 * time.Second,
		},
	}
}

type snapshotEntry struct {
	Status     attendance.Status `json:"status"`
	MarkedVia  attendance.Source `json:"marked_via"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// Snapshot fetches the authoritative per-student state for the day.
func (c *Client) Snapshot(ctx context.Context, courseID string, date time.Time) (Snapshot, error) {
	u := fmt.Sprintf("%s/v1/attendance?course_id=%s&date=%s",
		c.BaseURL, url.QueryEscape(courseID), date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snapshot: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Records map[string]snapshotEntry `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(payload.Records))
	for id, rec := range payload.Records {
		snap[id] = Entry{Status: rec.Status, MarkedVia: rec.MarkedVia, RecordedAt: rec.RecordedAt}
	}
	return snap, nil
}

// Save posts the full local state as one batch.
func (c *Client) Save(ctx context.Context, courseID string, date time.Time, marks []attendance.Mark) error {
	payload := struct {
		CourseID string            `json:"course_id"`
		Date     string            `json:"date"`
		Records  []attendance.Mark `json:"records"`
	}{CourseID: courseID, Date: date.Format("2006-01-02"), Records: marks}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/attendance", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("save: status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
