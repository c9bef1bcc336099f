package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelmeta/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "movies.csv")
	if err := os.WriteFile(f, []byte("movieId,title,genres\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckFile("movies.csv", f); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckFile("links.csv", filepath.Join(dir, "links.csv")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
	if result := CheckFile("dir", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
}

func TestCheckTMDB_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/configuration" || r.URL.Query().Get("api_key") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckTMDB(context.Background(), srv.URL+"/", "good-key")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckTMDB_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckTMDB(context.Background(), srv.URL, "bad-key")
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "invalid api key") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckTMDB_MissingKey(t *testing.T) {
	result := CheckTMDB(context.Background(), "http://localhost", "")
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestCheckEmbeddingAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer embed-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Semantic.Embedder = "http"
	cfg.Semantic.BaseURL = srv.URL
	cfg.Semantic.APIKey = "embed-key"
	cfg.Semantic.Dimensions = 2

	if result := CheckEmbeddingAPI(context.Background(), &cfg); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	cfg.Semantic.APIKey = "wrong"
	if result := CheckEmbeddingAPI(context.Background(), &cfg); result.Passed {
		t.Fatal("expected failure for rejected key")
	}
}

func TestCheckStorage_Disabled(t *testing.T) {
	result := CheckStorage(context.Background(), config.Storage{})
	if result.Passed {
		t.Fatal("expected failure when storage is disabled")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dataDir := t.TempDir()
	for _, name := range []string{"movies.csv", "links.csv"} {
		if err := os.WriteFile(filepath.Join(dataDir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.Default()
	cfg.Paths.DataDir = dataDir
	cfg.Paths.OutputFile = filepath.Join(dataDir, "out.csv")
	cfg.TMDB.APIKey = "test"
	cfg.TMDB.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	// dataset files, output directory and TMDb
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}
