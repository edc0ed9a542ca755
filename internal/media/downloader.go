package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/taskgroup"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// MaxDirNameLength caps sanitized article directory names, in characters.
const MaxDirNameLength = 50

var (
	titleReplacer = strings.NewReplacer(`\`, "", "/", "", "*", "", "?", "", ":", "", `"`, "", "<", "", ">", "", "|", "")
	trailingExt   = regexp.MustCompile(`\.(\w+)$`)
)

// Downloader saves content images into one directory per article.
type Downloader struct {
	outputDir string
	fetcher   fetcher.StreamFetcher
	timeout   time.Duration
	chunkSize int
	parallel  bool
	workers   int
	delay     time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewDownloader creates a downloader writing under cfg.Storage.DownloadDir.
func NewDownloader(cfg *config.Config, f fetcher.StreamFetcher, metrics *observability.Metrics, logger *slog.Logger) *Downloader {
	return &Downloader{
		outputDir: cfg.Storage.DownloadDir,
		fetcher:   f,
		timeout:   cfg.Fetcher.ImageTimeout,
		chunkSize: cfg.Fetcher.ChunkSize,
		parallel:  cfg.Engine.Mode == config.ModeParallel,
		workers:   cfg.Engine.ImageWorkers,
		delay:     cfg.Engine.ImageDelay,
		metrics:   metrics,
		logger:    logger.With("component", "media_downloader"),
		now:       time.Now,
	}
}

// DownloadPost downloads every URL into the post's directory and returns the
// paths that were written, in the order of urls. Failed images are logged
// and left out; they never stop the remaining downloads.
func (d *Downloader) DownloadPost(ctx context.Context, post types.Post, urls []string) []string {
	saved := make([]string, 0, len(urls))
	if len(urls) == 0 {
		return saved
	}

	dir := filepath.Join(d.outputDir, SanitizeTitle(post.Title))
	fn := func(ctx context.Context, i int) types.Result[string] {
		return d.download(ctx, dir, urls[i])
	}

	var results []types.Result[string]
	if d.parallel {
		results = taskgroup.RunAll(ctx, d.workers, len(urls), fn)
	} else {
		results = taskgroup.RunSequential(ctx, d.delay, len(urls), fn)
	}

	for i, r := range results {
		if !r.IsOK() {
			d.metrics.ImagesFailed.Inc()
			d.logger.Warn("image download failed", "url", urls[i], "error", r.Err)
			continue
		}
		d.metrics.ImagesDownloaded.Inc()
		saved = append(saved, r.Value)
	}
	return saved
}

// download streams one image into dir.
func (d *Downloader) download(ctx context.Context, dir, rawURL string) types.Result[string] {
	// MkdirAll tolerates concurrent creation of the same directory.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.Failed[string](fmt.Errorf("create article dir: %w", err))
	}

	localPath := filepath.Join(dir, FilenameFor(rawURL, d.now()))

	body, err := d.fetcher.Stream(ctx, rawURL, d.timeout)
	if err != nil {
		return types.Failed[string](err)
	}
	defer body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return types.Failed[string](fmt.Errorf("create file: %w", err))
	}

	// Hide ReaderFrom/WriterTo so the copy goes through buf in fixed chunks.
	buf := make([]byte, d.chunkSize)
	size, err := io.CopyBuffer(struct{ io.Writer }{f}, struct{ io.Reader }{body}, buf)
	if err != nil {
		f.Close()
		os.Remove(localPath)
		return types.Failed[string](fmt.Errorf("write file: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(localPath)
		return types.Failed[string](fmt.Errorf("close file: %w", err))
	}

	d.metrics.BytesWritten.Add(float64(size))
	d.logger.Debug("image saved", "url", rawURL, "path", localPath, "size", size)
	return types.Ok(localPath)
}

// SanitizeTitle strips characters that are unsafe in directory names and
// truncates to MaxDirNameLength characters. Names that are empty or consist
// only of dots and spaces become "untitled". Distinct titles may map to the
// same name; such articles share a directory.
func SanitizeTitle(title string) string {
	name := titleReplacer.Replace(title)
	if r := []rune(name); len(r) > MaxDirNameLength {
		name = string(r[:MaxDirNameLength])
	}
	// Names made only of dots or spaces would escape or alias the download root.
	if strings.Trim(name, ". ") == "" {
		return "untitled"
	}
	return name
}

// FilenameFor returns the percent-decoded basename of the URL path. When the
// path has no basename it synthesizes image_<unix>.<ext>, taking ext from the
// URL's trailing extension or defaulting to jpg. Synthesized names only have
// one-second resolution.
func FilenameFor(rawURL string, now time.Time) string {
	var name string
	if u, err := url.Parse(rawURL); err == nil {
		p := u.Path
		name = p[strings.LastIndex(p, "/")+1:]
	}
	if name != "" && name != "." && name != ".." {
		return name
	}

	ext := "jpg"
	if m := trailingExt.FindStringSubmatch(rawURL); m != nil {
		ext = m[1]
	}
	return fmt.Sprintf("image_%d.%s", now.Unix(), ext)
}
