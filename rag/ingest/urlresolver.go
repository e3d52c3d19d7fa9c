package ingest

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/internal/tlsutil"
	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProbeSuffixes are tried in order after the page's extension is removed.
var ProbeSuffixes = []string{"/", "", ".html", "/index.html", "/index.php", ".php", ".cfm", ".aspx", ".htm"}

// URLResolverConfig configures canonical URL probing.
type URLResolverConfig struct {
	// Hosts maps a university directory to its web host, used when the
	// mirror tree does not start with a host directory.
	Hosts   map[string]string `json:"hosts" yaml:"hosts"`
	Scheme  string            `json:"scheme" yaml:"scheme"`
	Timeout time.Duration     `json:"timeout" yaml:"timeout"`
	// RatePerHost caps probes per second against one host.
	RatePerHost float64 `json:"rate_per_host" yaml:"rate_per_host"`
	Burst       int     `json:"burst" yaml:"burst"`
}

// URLResolver finds a live URL for a mirrored HTML page.
type URLResolver struct {
	cfg      URLResolverConfig
	client   *http.Client
	failures *zap.Logger
	logger   *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewURLResolver creates a resolver. failures receives one entry per page
// that could not be resolved; it may be nil.
func NewURLResolver(cfg URLResolverConfig, failures, logger *zap.Logger) *URLResolver {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerHost <= 0 {
		cfg.RatePerHost = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if failures == nil {
		failures = zap.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLResolver{
		cfg:      cfg,
		client:   tlsutil.ProbeHTTPClient(cfg.Timeout),
		failures: failures,
		logger:   logger.With(zap.String("component", "url_resolver")),
		limiters: make(map[string]*rate.Limiter),
	}
}

// NewFailureLogger opens the side log that records unresolved pages.
func NewFailureLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	return cfg.Build()
}

// Candidates lists the probe URLs for a page in order. relPath is the
// page's path inside the university subtree.
func (r *URLResolver) Candidates(university, relPath string) []string {
	relPath = strings.TrimPrefix(path.Clean("/"+relPath), "/")
	host := r.cfg.Hosts[university]
	if first, rest, ok := strings.Cut(relPath, "/"); ok && strings.Contains(first, ".") {
		host, relPath = first, rest
	}
	if host == "" {
		return nil
	}

	stem := relPath
	if ext := path.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}
	if path.Base(stem) == "index" {
		stem = strings.TrimSuffix(path.Dir(stem), ".")
	}
	base := r.cfg.Scheme + "://" + host
	if stem != "" {
		base += "/" + stem
	}

	out := make([]string, 0, len(ProbeSuffixes))
	seen := make(map[string]bool, len(ProbeSuffixes))
	for _, suffix := range ProbeSuffixes {
		u := base + suffix
		if stem == "" && suffix != "/" && suffix != "" {
			// Site root: only "/" and "" make sense.
			continue
		}
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

func (r *URLResolver) limiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.cfg.RatePerHost), r.cfg.Burst)
		r.limiters[host] = l
	}
	return l
}

// Resolve returns the first candidate answering 200, or nil.
func (r *URLResolver) Resolve(ctx context.Context, university, relPath string) *string {
	candidates := r.Candidates(university, relPath)
	for _, u := range candidates {
		ok, err := r.probe(ctx, u)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if ok {
			return &u
		}
	}
	r.failures.Info("url unresolved",
		zap.String("university", university),
		zap.String("path", relPath),
		zap.Int("candidates", len(candidates)))
	return nil
}

func (r *URLResolver) probe(ctx context.Context, u string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	if err := r.limiter(req.URL.Host).Wait(ctx); err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("probe failed", zap.String("url", u), zap.Error(err))
		return false, types.NewError(types.ErrURLProbeFailed, u).WithCause(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK, nil
}
