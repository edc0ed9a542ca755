package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Crawl modes.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

// Config is the root configuration for imgharvest.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"    yaml:"site"`
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// SiteConfig describes the listing source.
type SiteConfig struct {
	BaseURL         string          `mapstructure:"base_url"         yaml:"base_url"`
	ListingPath     string          `mapstructure:"listing_path"     yaml:"listing_path"` // fmt pattern taking the page number
	Selectors       ListingSelector `mapstructure:"selectors"        yaml:"selectors"`
	ContentSelector string          `mapstructure:"content_selector" yaml:"content_selector"`
}

// ListingSelector locates post fields inside one listing page.
// Field selectors are relative to the item node.
type ListingSelector struct {
	Type      string `mapstructure:"type"       yaml:"type"` // css, xpath
	Item      string `mapstructure:"item"       yaml:"item"`
	Link      string `mapstructure:"link"       yaml:"link"`
	LinkAttr  string `mapstructure:"link_attr"  yaml:"link_attr"`
	Title     string `mapstructure:"title"      yaml:"title"`
	Date      string `mapstructure:"date"       yaml:"date"`
	Cover     string `mapstructure:"cover"      yaml:"cover"`
	CoverAttr string `mapstructure:"cover_attr" yaml:"cover_attr"`
}

// EngineConfig controls the crawl frontier and download fan-out.
type EngineConfig struct {
	Mode         string        `mapstructure:"mode"          yaml:"mode"`
	MaxPages     int           `mapstructure:"max_pages"     yaml:"max_pages"`
	PageWorkers  int           `mapstructure:"page_workers"  yaml:"page_workers"`
	ImageWorkers int           `mapstructure:"image_workers" yaml:"image_workers"`
	PageDelay    time.Duration `mapstructure:"page_delay"    yaml:"page_delay"`
	ImageDelay   time.Duration `mapstructure:"image_delay"   yaml:"image_delay"`
}

// FetcherConfig controls the HTTP and browser fetchers.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	ListingTimeout  time.Duration `mapstructure:"listing_timeout"   yaml:"listing_timeout"`
	ArticleTimeout  time.Duration `mapstructure:"article_timeout"   yaml:"article_timeout"`
	ImageTimeout    time.Duration `mapstructure:"image_timeout"     yaml:"image_timeout"`
	ChunkSize       int           `mapstructure:"chunk_size"        yaml:"chunk_size"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Stealth         bool          `mapstructure:"stealth"           yaml:"stealth"`
}

// StorageConfig controls the state store and the image output directory.
type StorageConfig struct {
	Type        string      `mapstructure:"type"         yaml:"type"`
	Path        string      `mapstructure:"path"         yaml:"path"`
	DownloadDir string      `mapstructure:"download_dir" yaml:"download_dir"`
	Mongo       MongoConfig `mapstructure:"mongo"        yaml:"mongo"`
}

// MongoConfig selects where the state document lives in MongoDB.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"        yaml:"uri"`
	Database   string        `mapstructure:"database"   yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Key        string        `mapstructure:"key"        yaml:"key"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the end-of-run metrics dump.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// DefaultConfig returns a Config targeting the Shochiku-Tokyu notice listing.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:     "https://www.shochiku-tokyu.co.jp",
			ListingPath: "/notice/?p=%d",
			Selectors: ListingSelector{
				Type:      "css",
				Item:      ".p_notice-container_list_item",
				Link:      "a",
				LinkAttr:  "href",
				Title:     "p.m_information-item-box_title",
				Date:      "p.m_information-item-box_wrap_date",
				Cover:     "img.lazyload",
				CoverAttr: "src",
			},
			ContentSelector: "main",
		},
		Engine: EngineConfig{
			Mode:         ModeParallel,
			MaxPages:     10,
			PageWorkers:  10,
			ImageWorkers: 10,
			PageDelay:    1 * time.Second,
			ImageDelay:   500 * time.Millisecond,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			ListingTimeout:  10 * time.Second,
			ArticleTimeout:  15 * time.Second,
			ImageTimeout:    15 * time.Second,
			ChunkSize:       8192,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Storage: StorageConfig{
			Type:        "json",
			Path:        "data~shochiku.json",
			DownloadDir: "downloaded_images",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "imgharvest",
				Collection: "state",
				Key:        "shochiku",
				Timeout:    10 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
