package opensearch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/logger"
)

// SigningName is the SigV4 service name of OpenSearch Serverless.
const SigningName = "aoss"

// DefaultTimeout bounds each request when Options.HTTPClient is nil.
const DefaultTimeout = 300 * time.Second

const maxErrorBody = 4 << 10

// Options configures a Manager.
type Options struct {
	// Endpoint is the collection endpoint. A bare host is treated as https.
	Endpoint    string
	Region      string
	Credentials aws.CredentialsProvider
	HTTPClient  *http.Client
	Logger      *zap.Logger
	// Now is the signing clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager issues signed index requests against one collection.
type Manager struct {
	base   *url.URL
	region string
	creds  aws.CredentialsProvider
	client *http.Client
	signer *v4.Signer
	logger *zap.Logger
	now    func() time.Time
}

// New validates opts and returns a Manager.
func New(opts Options) (*Manager, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse opensearch endpoint: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("parse opensearch endpoint %q: missing host", opts.Endpoint)
	}
	if opts.Credentials == nil {
		return nil, fmt.Errorf("opensearch: no credentials provider")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("opensearch: no region")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		base:   base,
		region: opts.Region,
		creds:  opts.Credentials,
		client: client,
		signer: v4.NewSigner(),
		logger: logger.OrNop(opts.Logger),
		now:    now,
	}, nil
}

// Create creates the index described by idx.
func (m *Manager) Create(ctx context.Context, idx IndexSpec) (map[string]any, error) {
	idx = idx.WithDefaults()
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(idx.body())
	if err != nil {
		return nil, fmt.Errorf("encode index body: %w", err)
	}
	m.logger.Info("creating index",
		zap.String("index", idx.Name),
		zap.Int("dimension", idx.Dimension),
		zap.String("engine", idx.Engine),
	)
	return m.do(ctx, http.MethodPut, idx.Name, body)
}

// Delete removes the named index.
func (m *Manager) Delete(ctx context.Context, name string) (map[string]any, error) {
	if name == "" {
		name = DefaultIndexName
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	m.logger.Info("deleting index", zap.String("index", name))
	return m.do(ctx, http.MethodDelete, name, nil)
}

// Get returns the settings and mappings of the named index.
func (m *Manager) Get(ctx context.Context, name string) (map[string]any, error) {
	if name == "" {
		name = DefaultIndexName
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	return m.do(ctx, http.MethodGet, name, nil)
}

// Recreate deletes the index and creates it again with the faiss engine. A
// missing index is not an error.
func (m *Manager) Recreate(ctx context.Context, idx IndexSpec) (map[string]any, error) {
	idx = idx.WithDefaults()
	idx.Engine = EngineFAISS
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	if _, err := m.Delete(ctx, idx.Name); err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		m.logger.Debug("index did not exist", zap.String("index", idx.Name))
	}
	return m.Create(ctx, idx)
}

func (m *Manager) do(ctx context.Context, method, index string, body []byte) (map[string]any, error) {
	u := m.base.JoinPath(index)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if err := m.sign(ctx, req, body); err != nil {
		return nil, err
	}

	start := m.now()
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, index, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	m.logger.Debug("opensearch response",
		zap.String("method", method),
		zap.String("index", index),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", m.now().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ResponseError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode %s %s response: %w", method, index, err)
	}
	return out, nil
}

func (m *Manager) sign(ctx context.Context, req *http.Request, body []byte) error {
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])
	req.Header.Set("x-amz-content-sha256", payloadHash)

	creds, err := m.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve aws credentials: %w", err)
	}
	if err := m.signer.SignHTTP(ctx, creds, req, payloadHash, SigningName, m.region, m.now()); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	return nil
}
