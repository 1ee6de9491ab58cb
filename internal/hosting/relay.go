package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"productshot-server/internal/domain"
)

// Endpoints names the public file hosts the relay tries, in order. Tests
// point them at httptest servers.
type Endpoints struct {
	Tmpfiles   string
	TransferSh string
	ZeroXZero  string
	FileIO     string
}

// DefaultEndpoints returns the production host addresses.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Tmpfiles:   "https://tmpfiles.org/api/v1/upload",
		TransferSh: "https://transfer.sh",
		ZeroXZero:  "https://0x0.st",
		FileIO:     "https://file.io",
	}
}

// Options configures a Relay.
type Options struct {
	UploadDir   string
	FallbackDir string
	HTTPClient  *http.Client
	Endpoints   Endpoints
}

// Relay makes locally-served uploads reachable by the external provider by
// pushing them to a chain of anonymous public file hosts. The provider cannot
// fetch addresses on the local network, so this is the only way a private
// upload becomes provider-visible.
type Relay struct {
	uploadDir   string
	fallbackDir string
	client      *http.Client
	endpoints   Endpoints
}

func NewRelay(opts Options) *Relay {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	endpoints := opts.Endpoints
	if endpoints == (Endpoints{}) {
		endpoints = DefaultEndpoints()
	}
	fallback := opts.FallbackDir
	if fallback == "" {
		fallback = filepath.Join(os.TempDir(), "uploads")
	}
	return &Relay{
		uploadDir:   opts.UploadDir,
		fallbackDir: fallback,
		client:      client,
		endpoints:   endpoints,
	}
}

// PublicURL resolves an image reference into a URL the provider can fetch.
// References already pointing at a non-local host pass through unchanged.
// Local references must name a file under the served /files/ path; the file
// is pushed to the first public host that accepts it. Every host is tried
// once, failures are accumulated, and only when all of them refuse does the
// call fail with ErrHostingUnavailable.
func (r *Relay) PublicURL(ctx context.Context, ref string) (string, error) {
	if !isLocalRef(ref) {
		return ref, nil
	}

	name, err := localFileName(ref)
	if err != nil {
		return "", err
	}

	path := filepath.Join(r.uploadDir, name)
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(r.fallbackDir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrFileNotFound, name)
	}

	uploaders := []struct {
		name string
		fn   func(ctx context.Context, name string, data []byte) (string, error)
	}{
		{"tmpfiles", r.uploadTmpfiles},
		{"transfer.sh", r.uploadTransferSh},
		{"0x0", r.uploadZeroXZero},
		{"file.io", r.uploadFileIO},
	}

	var failures []string
	for _, up := range uploaders {
		hosted, err := up.fn(ctx, name, data)
		if err != nil {
			failures = append(failures, up.name+": "+err.Error())
			continue
		}
		return hosted, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrHostingUnavailable, strings.Join(failures, "; "))
}

func isLocalRef(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

func localFileName(ref string) (string, error) {
	idx := strings.LastIndex(ref, "/files/")
	if idx < 0 {
		return "", fmt.Errorf("%w: local reference must be a /files/ path", domain.ErrFileNotFound)
	}
	name := ref[idx+len("/files/"):]
	if q := strings.IndexByte(name, '?'); q >= 0 {
		name = name[:q]
	}
	name = filepath.Base(name)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: empty file name", domain.ErrFileNotFound)
	}
	return name, nil
}

func (r *Relay) uploadTmpfiles(ctx context.Context, name string, data []byte) (string, error) {
	body, contentType, err := multipartBody("file", name, data)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoints.Tmpfiles, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	hosted := out.Data.URL
	if hosted == "" {
		hosted = out.URL
	}
	if hosted == "" {
		return "", fmt.Errorf("response missing url: %s", raw)
	}
	// The API hands back the landing page; the direct-download variant lives
	// under /dl/.
	if strings.Contains(hosted, "tmpfiles.org/") && !strings.Contains(hosted, "/dl/") {
		hosted = strings.Replace(hosted, "tmpfiles.org/", "tmpfiles.org/dl/", 1)
	}
	return hosted, nil
}

func (r *Relay) uploadTransferSh(ctx context.Context, name string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.endpoints.TransferSh+"/"+name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (r *Relay) uploadZeroXZero(ctx context.Context, name string, data []byte) (string, error) {
	body, contentType, err := multipartBody("file", name, data)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoints.ZeroXZero, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (r *Relay) uploadFileIO(ctx context.Context, name string, data []byte) (string, error) {
	body, contentType, err := multipartBody("file", name, data)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoints.FileIO, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Link string `json:"link"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	hosted := out.Link
	if hosted == "" {
		hosted = out.URL
	}
	if hosted == "" {
		return "", fmt.Errorf("response missing url: %s", raw)
	}
	return hosted, nil
}

func multipartBody(field, name string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
