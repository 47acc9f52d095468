package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docplain/pkg/api"

	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
	viper.SetEnvPrefix("DOCPLAIN")
	viper.AutomaticEnv()
}

func TestSubmitCommand_Success(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/v1/jobs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req api.EnqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.DocumentRef != "s3://bucket/report.pdf" {
			t.Errorf("document_ref = %q", req.DocumentRef)
		}
		if req.TargetLanguage != "de" {
			t.Errorf("target_language = %q", req.TargetLanguage)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.EnqueueJobResponse{JobID: "7b3f9c2a-1111-2222-3333-444455556666"})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit", "--document", "s3://bucket/report.pdf", "--language", "de"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Job enqueued") {
		t.Errorf("expected confirmation in output, got: %s", output)
	}
	if !strings.Contains(output, "7b3f9c2a-1111-2222-3333-444455556666") {
		t.Errorf("expected job ID in output, got: %s", output)
	}
}

func TestSubmitCommand_MissingDocument(t *testing.T) {
	resetViper()
	submitDocument = ""
	submitLanguage = ""

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "--document is required") {
		t.Errorf("expected missing-document message, got: %s", stdout.String())
	}
}

func TestSubmitCommand_ServerError(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit", "--document", "s3://bucket/report.pdf"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Failed to enqueue job") {
		t.Errorf("expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "500") {
		t.Errorf("expected status code in output, got: %s", output)
	}
}

func TestSubmitCommand_ConnectionRefused(t *testing.T) {
	resetViper()

	viper.Set("url", "http://127.0.0.1:1")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit", "--document", "s3://bucket/report.pdf"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Failed to enqueue job") {
		t.Errorf("expected failure message, got: %s", stdout.String())
	}
}
