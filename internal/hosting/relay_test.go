package hosting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"productshot-server/internal/domain"
)

func writeUpload(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("image-bytes"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
}

func TestPublicURLPassesThroughRemoteRefs(t *testing.T) {
	r := NewRelay(Options{UploadDir: t.TempDir()})
	got, err := r.PublicURL(context.Background(), "https://cdn.example/img.png")
	if err != nil {
		t.Fatalf("PublicURL: %v", err)
	}
	if got != "https://cdn.example/img.png" {
		t.Fatalf("remote ref must pass through, got %q", got)
	}
}

func TestPublicURLUsesFirstWorkingHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"url":"https://tmpfiles.org/123/f.png"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeUpload(t, dir, "f.png")
	r := NewRelay(Options{
		UploadDir:  dir,
		HTTPClient: srv.Client(),
		Endpoints:  Endpoints{Tmpfiles: srv.URL, TransferSh: srv.URL, ZeroXZero: srv.URL, FileIO: srv.URL},
	})

	got, err := r.PublicURL(context.Background(), "http://localhost:8000/files/f.png")
	if err != nil {
		t.Fatalf("PublicURL: %v", err)
	}
	if got != "https://tmpfiles.org/dl/123/f.png" {
		t.Fatalf("expected /dl/ rewrite, got %q", got)
	}
}

func TestPublicURLFallsBackDownTheChain(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("https://transfer.example/f.png\n"))
	}))
	defer working.Close()

	dir := t.TempDir()
	writeUpload(t, dir, "f.png")
	r := NewRelay(Options{
		UploadDir: dir,
		Endpoints: Endpoints{Tmpfiles: failing.URL, TransferSh: working.URL, ZeroXZero: failing.URL, FileIO: failing.URL},
	})

	got, err := r.PublicURL(context.Background(), "http://127.0.0.1:8000/files/f.png")
	if err != nil {
		t.Fatalf("PublicURL: %v", err)
	}
	if got != "https://transfer.example/f.png" {
		t.Fatalf("got %q", got)
	}
}

func TestPublicURLAllHostsDown(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	dir := t.TempDir()
	writeUpload(t, dir, "f.png")
	r := NewRelay(Options{
		UploadDir: dir,
		Endpoints: Endpoints{Tmpfiles: failing.URL, TransferSh: failing.URL, ZeroXZero: failing.URL, FileIO: failing.URL},
	})

	_, err := r.PublicURL(context.Background(), "http://localhost:8000/files/f.png")
	if !errors.Is(err, domain.ErrHostingUnavailable) {
		t.Fatalf("got %v, want ErrHostingUnavailable", err)
	}
}

func TestPublicURLMissingFile(t *testing.T) {
	r := NewRelay(Options{UploadDir: t.TempDir(), FallbackDir: t.TempDir()})
	_, err := r.PublicURL(context.Background(), "http://localhost:8000/files/missing.png")
	if !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("got %v, want ErrFileNotFound", err)
	}
}

func TestPublicURLRejectsNonFilesPath(t *testing.T) {
	r := NewRelay(Options{UploadDir: t.TempDir()})
	_, err := r.PublicURL(context.Background(), "http://localhost:8000/other/f.png")
	if !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("got %v, want ErrFileNotFound", err)
	}
}

func TestPublicURLChecksFallbackDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"url":"https://host.example/f.png"}}`))
	}))
	defer srv.Close()

	fallback := t.TempDir()
	writeUpload(t, fallback, "f.png")
	r := NewRelay(Options{
		UploadDir:   filepath.Join(t.TempDir(), "does-not-exist"),
		FallbackDir: fallback,
		Endpoints:   Endpoints{Tmpfiles: srv.URL, TransferSh: srv.URL, ZeroXZero: srv.URL, FileIO: srv.URL},
	})

	got, err := r.PublicURL(context.Background(), "http://localhost:8000/files/f.png?v=2")
	if err != nil {
		t.Fatalf("PublicURL: %v", err)
	}
	if got != "https://host.example/f.png" {
		t.Fatalf("got %q", got)
	}
}

func TestLocalFileNameStripsQueryAndPath(t *testing.T) {
	name, err := localFileName("http://localhost:8000/files/../../etc/passwd?x=1")
	if err != nil {
		t.Fatalf("localFileName: %v", err)
	}
	if name != "passwd" {
		t.Fatalf("got %q, want base name only", name)
	}
}

func TestIsLocalRef(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"http://localhost:8000/files/a.png", true},
		{"http://127.0.0.1/files/a.png", true},
		{"https://cdn.example/a.png", false},
		{"not-a-url", true},
	}
	for _, tt := range tests {
		if got := isLocalRef(tt.ref); got != tt.want {
			t.Errorf("isLocalRef(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
