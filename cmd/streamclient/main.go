package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type metaPayload struct {
	JobID            string `json:"job_id"`
	ModelUsed        string `json:"model_used"`
	DetectedLanguage string `json:"detected_language"`
	TaskUsed         string `json:"task_used"`
}

type segmentPayload struct {
	Text string `json:"text"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: streamclient <audio-file> [model] [language]")
	}
	audioPath := os.Args[1]

	model := "small"
	if len(os.Args) > 2 {
		model = os.Args[2]
	}
	language := ""
	if len(os.Args) > 3 {
		language = os.Args[3]
	}

	baseURL := os.Getenv("SERVER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	fmt.Printf("[CLIENT] Streaming %s (model=%s language=%q)\n", audioPath, model, language)

	resp, err := postStream(baseURL, audioPath, model, language)
	if err != nil {
		log.Fatal("request: ", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var jobID string

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		if jobID == "" {
			os.Exit(1)
		}
		fmt.Printf("\n[CLIENT] Stopping job %s...\n", jobID)
		stopResp, err := http.Post(baseURL+"/stop/"+jobID, "application/json", nil)
		if err != nil {
			fmt.Printf("[CLIENT] Stop failed: %v\n", err)
			return
		}
		stopResp.Body.Close()
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			fmt.Printf("[CLIENT] Bad frame: %v\n", err)
			continue
		}

		switch ev.Type {
		case "meta":
			var meta metaPayload
			json.Unmarshal(ev.Payload, &meta)
			jobID = meta.JobID
			fmt.Printf("[CLIENT] Job %s started: model=%s detected=%s task=%s\n",
				meta.JobID, meta.ModelUsed, meta.DetectedLanguage, meta.TaskUsed)
		case "segment":
			var seg segmentPayload
			json.Unmarshal(ev.Payload, &seg)
			fmt.Print(seg.Text)
		case "stopped":
			fmt.Println("\n[CLIENT] Stopped by server")
		case "error":
			fmt.Printf("\n[CLIENT] Server error: %s\n", string(ev.Payload))
		case "end":
			fmt.Println("\n[CLIENT] Done")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal("stream read: ", err)
	}
}

func postStream(baseURL, audioPath, model, language string) (*http.Response, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("model_size", model)
	mw.WriteField("language", language)
	part, err := mw.CreateFormFile("audio_file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/translate_stream", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return http.DefaultClient.Do(req)
}
