package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

// Media is a fully downloaded media object.
type Media struct {
	Data        []byte
	ContentType string
}

func (m *Media) Size() int64 { return int64(len(m.Data)) }

// MediaInfo is what can be learned about a media object without downloading it.
// Size is -1 when unknown.
type MediaInfo struct {
	Size        int64
	ContentType string
}

// MediaFetcher downloads already hosted media by URL.
type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Media, error)
	Probe(ctx context.Context, rawURL string) (*MediaInfo, error)
}

// ErrMediaTooLarge is returned when a source holds more than the fetcher's limit.
var ErrMediaTooLarge = errors.New("media exceeds the download limit")

// ReadLimited reads r to the end and fails once more than limit bytes arrive.
// A limit of zero or less reads everything.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", ErrMediaTooLarge, limit)
	}
	return data, nil
}

// HTTPFetcher fetches http(s) URLs.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPFetcher(hc *http.Client) *HTTPFetcher {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPFetcher{Client: hc, MaxBytes: 4 << 30}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media: %s", resp.Status)
	}
	if f.MaxBytes > 0 && resp.ContentLength > f.MaxBytes {
		return nil, fmt.Errorf("fetch media: %w of %d bytes", ErrMediaTooLarge, f.MaxBytes)
	}
	data, err := ReadLimited(resp.Body, f.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	return &Media{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (f *HTTPFetcher) Probe(ctx context.Context, rawURL string) (*MediaInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe media: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe media: %s", resp.Status)
	}
	size := int64(-1)
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			size = n
		}
	}
	return &MediaInfo{Size: size, ContentType: resp.Header.Get("Content-Type")}, nil
}

// MediaConstraints are the upload limits a platform enforces per media kind.
type MediaConstraints struct {
	AllowImage      bool
	AllowVideo      bool
	MaxImageBytes   int64
	MaxVideoBytes   int64
	ImageExtensions []string
	VideoExtensions []string
}

var (
	InstagramConstraints = MediaConstraints{
		AllowImage:      true,
		AllowVideo:      true,
		MaxImageBytes:   8 << 20,
		MaxVideoBytes:   1 << 30,
		ImageExtensions: []string{".jpg", ".jpeg"},
		VideoExtensions: []string{".mp4", ".mov"},
	}
	TikTokConstraints = MediaConstraints{
		AllowVideo:      true,
		MaxVideoBytes:   4 << 30,
		VideoExtensions: []string{".mp4", ".mov", ".webm"},
	}
	TwitterConstraints = MediaConstraints{
		AllowImage:      true,
		AllowVideo:      true,
		MaxImageBytes:   5 << 20,
		MaxVideoBytes:   512 << 20,
		ImageExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		VideoExtensions: []string{".mp4", ".mov"},
	}
	YouTubeConstraints = MediaConstraints{
		AllowVideo:      true,
		MaxVideoBytes:   256 << 30,
		VideoExtensions: []string{".mp4", ".mov", ".avi", ".wmv", ".flv", ".webm", ".mpeg", ".mpg", ".3gp"},
	}
)

// ValidateMedia applies the static constraints: URL shape, media kind and file extension.
// Size is checked separately by CheckSize once the object has been probed.
func ValidateMedia(c MediaConstraints, rawURL string, kind model.MediaKind) *model.MediaValidation {
	v := &model.MediaValidation{Valid: true}
	fail := func(format string, args ...any) {
		v.Valid = false
		v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "s3") {
		fail("media url must be an absolute http(s) or s3 url")
		return v
	}

	var exts []string
	switch kind {
	case model.MediaKindVideo:
		if !c.AllowVideo {
			fail("video is not supported")
			return v
		}
		exts = c.VideoExtensions
	default:
		if !c.AllowImage {
			fail("image is not supported")
			return v
		}
		exts = c.ImageExtensions
	}

	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(exts) > 0 && !containsString(exts, ext) {
		fail("unsupported file extension %s (allowed: %s)", ext, strings.Join(exts, ", "))
	}
	return v
}

// CheckSize records a size violation on v. Unknown sizes (negative) pass.
func CheckSize(v *model.MediaValidation, c MediaConstraints, kind model.MediaKind, size int64) {
	limit := c.MaxImageBytes
	if kind == model.MediaKindVideo {
		limit = c.MaxVideoBytes
	}
	if size >= 0 && limit > 0 && size > limit {
		v.Valid = false
		v.Errors = append(v.Errors, fmt.Sprintf("file size %d exceeds limit of %d bytes", size, limit))
	}
}

// ValidateRemote runs the static checks and, when they pass and a fetcher is
// available, probes the object to check its size.
func ValidateRemote(ctx context.Context, f MediaFetcher, c MediaConstraints, rawURL string, kind model.MediaKind) *model.MediaValidation {
	v := ValidateMedia(c, rawURL, kind)
	if !v.Valid || f == nil {
		return v
	}
	info, err := f.Probe(ctx, rawURL)
	if err != nil {
		v.Valid = false
		v.Errors = append(v.Errors, "media is not reachable: "+err.Error())
		return v
	}
	CheckSize(v, c, kind, info.Size)
	return v
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
