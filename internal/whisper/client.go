package whisper

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// Segment lines should fit comfortably; whisper emits short phrases.
	maxLineSize = 1 * 1024 * 1024

	defaultPingTimeout = 5 * time.Second
)

type Config struct {
	// Address is the base URL of the whisper sidecar, e.g. "http://localhost:9000".
	Address string
}

// Client speaks to a whisper sidecar over HTTP. The sidecar answers a
// multipart POST with an NDJSON body: one info line followed by one line per
// segment, written as each segment is decoded.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Address, "/"),
		// No client timeout: the response body is a long-lived stream.
		// Cancellation happens through the request context.
		httpClient: &http.Client{},
		logger:     logger.With("component", "whisper_client"),
	}
}

type wireLine struct {
	Type                string   `json:"type"`
	DetectedLanguage    string   `json:"detected_language,omitempty"`
	LanguageProbability float64  `json:"language_probability,omitempty"`
	Duration            float64  `json:"duration,omitempty"`
	Text                string   `json:"text,omitempty"`
	Start               *float64 `json:"start,omitempty"`
	End                 *float64 `json:"end,omitempty"`
	Detail              string   `json:"detail,omitempty"`
}

func (c *Client) Transcribe(ctx context.Context, req Request) (Info, SegmentStream, error) {
	file, err := os.Open(req.AudioPath)
	if err != nil {
		return Info{}, nil, fmt.Errorf("open staged audio: %w", err)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		defer file.Close()
		err := writeForm(form, file, filepath.Base(req.AudioPath), req)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", pr)
	if err != nil {
		return Info{}, nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Info{}, nil, fmt.Errorf("whisper sidecar: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return Info{}, nil, readError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	info, err := readInfo(scanner)
	if err != nil {
		resp.Body.Close()
		return Info{}, nil, err
	}

	c.logger.Debug("transcription started",
		"model", req.Model,
		"task", string(req.Task),
		"detected_language", info.DetectedLanguage,
	)

	return info, &segmentStream{body: resp.Body, scanner: scanner}, nil
}

// Ping checks the sidecar's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper sidecar health: status %d", resp.StatusCode)
	}
	return nil
}

func writeForm(form *multipart.Writer, file io.Reader, filename string, req Request) error {
	if err := form.WriteField("model_size", req.Model); err != nil {
		return err
	}
	if err := form.WriteField("task", string(req.Task)); err != nil {
		return err
	}
	if req.Language != "" {
		if err := form.WriteField("language", req.Language); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("audio_file", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func readInfo(scanner *bufio.Scanner) (Info, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Info{}, fmt.Errorf("read info line: %w", err)
		}
		return Info{}, fmt.Errorf("whisper sidecar closed stream before info line")
	}

	var line wireLine
	if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
		return Info{}, fmt.Errorf("decode info line: %w", err)
	}
	if line.Type == "error" {
		return Info{}, fmt.Errorf("whisper sidecar: %s", line.Detail)
	}
	if line.Type != "info" {
		return Info{}, fmt.Errorf("expected info line, got %q", line.Type)
	}

	return Info{
		DetectedLanguage:    line.DetectedLanguage,
		LanguageProbability: line.LanguageProbability,
		DurationSeconds:     line.Duration,
	}, nil
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLineSize))
	var line wireLine
	if err := json.Unmarshal(body, &line); err == nil && line.Detail != "" {
		return fmt.Errorf("whisper sidecar: %s", line.Detail)
	}
	return fmt.Errorf("whisper sidecar: status %d", resp.StatusCode)
}

type segmentStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *segmentStream) Next() (Segment, error) {
	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Segment{}, err
			}
			return Segment{}, io.EOF
		}
		if len(s.scanner.Bytes()) == 0 {
			continue
		}

		var line wireLine
		if err := json.Unmarshal(s.scanner.Bytes(), &line); err != nil {
			return Segment{}, fmt.Errorf("decode segment line: %w", err)
		}

		switch line.Type {
		case "segment":
			return Segment{Text: line.Text, Start: line.Start, End: line.End}, nil
		case "error":
			return Segment{}, fmt.Errorf("whisper sidecar: %s", line.Detail)
		case "end":
			return Segment{}, io.EOF
		default:
			return Segment{}, fmt.Errorf("unexpected line type %q", line.Type)
		}
	}
}

func (s *segmentStream) Close() error {
	return s.body.Close()
}
