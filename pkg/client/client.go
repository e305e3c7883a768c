// Package client is the Go counterpart of the browser client: it uploads
// captured stills for analysis and reads back the caller's history.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/capture"
)

// RequestError is a non-2xx reply.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return fmt.Sprintf("%d: %s", e.Status, e.Message) }

// NetworkError is a request that never got a reply.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == http.StatusUnauthorized
}

// Client talks to the analysis API with the session cookie attached.
// Requests are never retried.
type Client struct {
	base   *url.URL
	http   *http.Client
	cache  *QueryCache
	logger *zap.SugaredLogger
}

type Option func(*Client)

// WithHTTPClient replaces the default client. A nil Jar is filled in.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLogger(l *zap.SugaredLogger) Option { return func(c *Client) { c.logger = l } }

func WithCache(q *QueryCache) Option { return func(c *Client) { c.cache = q } }

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 90 * time.Second},
		cache:  NewQueryCache(),
		logger: zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// SetSession stores a session cookie for the server.
func (c *Client) SetSession(name, value string) {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// LoginURL is where an unauthenticated user should be sent.
func (c *Client) LoginURL() string { return c.base.String() + "/api/login" }

func (c *Client) Cache() *QueryCache { return c.cache }

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	u := c.base.String() + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Method: method, URL: u, Err: err}
	}
	defer resp.Body.Close()
	c.logger.Debugw("api call", "method", method, "path", path, "status", resp.StatusCode,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// errorMessage prefers the {"error"} or {"message"} field, then the raw
// body, then the status text.
func errorMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}

func (c *Client) upload(ctx context.Context, path string, still *capture.Still, out any) error {
	if still == nil || len(still.Data) == 0 {
		return errors.New("no image to upload")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="photo.jpg"`)
	h.Set("Content-Type", still.MIME)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(still.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), out)
}

// PredictAge uploads still to the age endpoint and drops the cached
// prediction listing on success.
func (c *Client) PredictAge(ctx context.Context, still *capture.Still) (*AgeResult, error) {
	var res AgeResult
	if err := c.upload(ctx, "/api/predict-age", still, &res); err != nil {
		return nil, err
	}
	c.cache.Invalidate(PredictionsPath)
	return &res, nil
}

// AnalyzePersonality uploads still to the personality endpoint and drops
// the cached analysis listing on success.
func (c *Client) AnalyzePersonality(ctx context.Context, still *capture.Still) (*PersonalityResult, error) {
	var res PersonalityResult
	if err := c.upload(ctx, "/api/analyze-personality", still, &res); err != nil {
		return nil, err
	}
	c.cache.Invalidate(AnalysesPath)
	return &res, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/auth/user", nil, "", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func listPath(path string, limit int) string {
	if limit <= 0 {
		return path
	}
	return path + "?limit=" + strconv.Itoa(limit)
}

func (c *Client) ListPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	var out []Prediction
	if err := c.do(ctx, http.MethodGet, listPath(PredictionsPath, limit), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	var p Prediction
	if err := c.do(ctx, http.MethodGet, PredictionsPath+"/"+url.PathEscape(id), nil, "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	var out []Analysis
	if err := c.do(ctx, http.MethodGet, listPath(AnalysesPath, limit), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	var a Analysis
	if err := c.do(ctx, http.MethodGet, AnalysesPath+"/"+url.PathEscape(id), nil, "", &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// PredictionHistory is the recent-predictions view backed by the cache.
func (c *Client) PredictionHistory() *History[Prediction] {
	return NewHistory(c.cache, PredictionsPath, func(ctx context.Context) ([]Prediction, error) {
		return c.ListPredictions(ctx, HistoryPageSize)
	})
}

// AnalysisHistory is the recent-analyses view backed by the cache.
func (c *Client) AnalysisHistory() *History[Analysis] {
	return NewHistory(c.cache, AnalysesPath, func(ctx context.Context) ([]Analysis, error) {
		return c.ListAnalyses(ctx, HistoryPageSize)
	})
}
