// internal/receipt/logo.go
package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/fallback"
	"pos-print-bridge/internal/model"
)

const (
	// TinyLogoLength is the embedded base64 length below which other sources are tried
	TinyLogoLength = 500

	// MinSourceLogoLength is the base64 length a local or downloaded logo must exceed
	MinSourceLogoLength = 800

	maxLogoBytes = 8 << 20
)

var (
	errLogoTooSmall = errors.New("logo too small")
	errNotAnImage   = errors.New("downloaded file is not a PNG/JPG image")
)

// LogoOptions configures where a logo may come from when the receipt lacks one
type LogoOptions struct {
	AssetURI        string        // file://, asset:/ or plain path of the packaged logo
	AssetDir        string        // directory holding packaged assets
	AssetName       string        // default asset file name
	DownloadTimeout time.Duration // remote logo fetch timeout
}

// LogoRequest carries the logo references found in a receipt
type LogoRequest struct {
	Embedded string
	URL      string
}

// LogoResolver picks the logo to print from embedded data, local assets or a URL
type LogoResolver struct {
	opts   LogoOptions
	client *http.Client
	chain  *fallback.Chain[LogoRequest, string]
	logger *zap.Logger
}

// NewLogoResolver creates a resolver with the source chain
// embedded -> file -> asset -> uri -> url.
func NewLogoResolver(opts LogoOptions, logger *zap.Logger) *LogoResolver {
	if opts.AssetName == "" {
		opts.AssetName = "logo.png"
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &LogoResolver{
		opts:   opts,
		client: &http.Client{Timeout: opts.DownloadTimeout},
		logger: logger.With(zap.String("component", "logo")),
	}
	r.chain = fallback.NewChain(
		fallback.Strategy[LogoRequest, string]{Name: "embedded", Try: r.tryEmbedded},
		fallback.Strategy[LogoRequest, string]{Name: "file", Try: r.tryFileURI},
		fallback.Strategy[LogoRequest, string]{Name: "asset", Try: r.tryAssetDir},
		fallback.Strategy[LogoRequest, string]{Name: "uri", Try: r.tryRawURI},
		fallback.Strategy[LogoRequest, string]{Name: "url", Try: r.tryDownload},
	)
	return r
}

// Resolve returns the base64 logo to print. When no source improves on the
// embedded value it is returned unchanged, which may be empty.
func (r *LogoResolver) Resolve(ctx context.Context, req LogoRequest) string {
	res, err := r.chain.Run(ctx, req)
	if err != nil {
		for _, a := range res.Attempts {
			if a.Err != nil && !a.Skipped && a.Name == "url" {
				r.logger.Warn("Logo download failed", zap.Error(&model.ImageError{Stage: "download", Err: a.Err}))
			}
		}
		r.logger.Debug("No logo source available, keeping embedded",
			zap.Int("embedded_length", len(codec.StripDataURI(req.Embedded))),
		)
		return req.Embedded
	}

	r.logger.Debug("Logo source selected",
		zap.String("source", res.Winner),
		zap.Int("length", len(res.Value)),
	)
	return res.Value
}

func isTiny(b64 string) bool {
	return len(codec.StripDataURI(b64)) < TinyLogoLength
}

func (r *LogoResolver) tryEmbedded(_ context.Context, req LogoRequest) (string, error) {
	if isTiny(req.Embedded) {
		return "", fallback.ErrSkip
	}
	return req.Embedded, nil
}

func (r *LogoResolver) tryFileURI(_ context.Context, _ LogoRequest) (string, error) {
	if !strings.HasPrefix(r.opts.AssetURI, "file://") {
		return "", fallback.ErrSkip
	}
	return readLogoFile(strings.TrimPrefix(r.opts.AssetURI, "file://"))
}

func (r *LogoResolver) tryAssetDir(_ context.Context, _ LogoRequest) (string, error) {
	if r.opts.AssetDir == "" {
		return "", fallback.ErrSkip
	}
	name := r.opts.AssetName
	if strings.HasPrefix(r.opts.AssetURI, "asset:/") {
		name = strings.TrimPrefix(r.opts.AssetURI, "asset:/")
	}
	return readLogoFile(filepath.Join(r.opts.AssetDir, name))
}

func (r *LogoResolver) tryRawURI(_ context.Context, _ LogoRequest) (string, error) {
	if r.opts.AssetURI == "" {
		return "", fallback.ErrSkip
	}
	return readLogoFile(r.opts.AssetURI)
}

func (r *LogoResolver) tryDownload(ctx context.Context, req LogoRequest) (string, error) {
	if req.URL == "" {
		return "", fallback.ErrSkip
	}
	return r.download(ctx, req.URL)
}

func readLogoFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	b64 := codec.EncodeBase64(data)
	if len(b64) <= MinSourceLogoLength {
		return "", fmt.Errorf("%w: %d", errLogoTooSmall, len(b64))
	}
	return b64, nil
}

// download fetches a PNG or JPEG logo and returns it base64 encoded
func (r *LogoResolver) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read logo: %w", err)
	}

	b64 := codec.EncodeBase64(data)
	if !strings.HasPrefix(b64, "iVBORw0KGgo") && !strings.HasPrefix(b64, "/9j/") {
		return "", errNotAnImage
	}
	if len(b64) < MinSourceLogoLength {
		return "", fmt.Errorf("%w: %d", errLogoTooSmall, len(b64))
	}
	return b64, nil
}
