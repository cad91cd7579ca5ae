package torrent

import (
	"strings"
	"time"
)

// Attributes holds the recognised properties of a release. A nil field means
// the property was not determined upstream.
type Attributes struct {
	BluRay     *bool `json:"blu,omitempty"`
	Remux      *bool `json:"remux,omitempty"`
	WebDL      *bool `json:"web_dl,omitempty"`
	UHD        *bool `json:"uhd,omitempty"`
	FullHD     *bool `json:"fhd,omitempty"`
	HD         *bool `json:"hd,omitempty"`
	ChineseSub *bool `json:"cn_sub,omitempty"`
	ChineseDub *bool `json:"cn_dub,omitempty"`
	H265       *bool `json:"h265,omitempty"`
	H264       *bool `json:"h264,omitempty"`
	Dolby      *bool `json:"dolby,omitempty"`
	HDR        *bool `json:"hdr,omitempty"`
	Free       *bool `json:"free,omitempty"`
	ThreeD     *bool `json:"3d,omitempty"`
	HighFPS    *bool `json:"60fps,omitempty"`
}

// Resource is a single candidate release.
type Resource struct {
	Site           string     `json:"site,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	PageURL        string     `json:"page_url,omitempty"`
	Size           int64      `json:"size,omitempty"`
	Seeders        int        `json:"seeders,omitempty"`
	Peers          int        `json:"peers,omitempty"`
	Grabs          int        `json:"grabs,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	UploadFactor   *float64   `json:"upload_factor,omitempty"`
	DownloadFactor *float64   `json:"download_factor,omitempty"`
	HitAndRun      bool       `json:"hit_and_run,omitempty"`
	Labels         []string   `json:"labels,omitempty"`
	Attributes     Attributes `json:"attributes"`
}

// Bool returns a pointer to v for populating Attributes literals.
func Bool(v bool) *bool {
	return &v
}

// Float returns a pointer to v for populating factor fields.
func Float(v float64) *float64 {
	return &v
}

// Text returns the title and description joined for pattern matching.
func (r *Resource) Text() string {
	if r == nil {
		return ""
	}
	title := strings.TrimSpace(r.Title)
	desc := strings.TrimSpace(r.Description)
	switch {
	case desc == "":
		return title
	case title == "":
		return desc
	default:
		return title + " " + desc
	}
}

// SizeMB reports the size in mebibytes and whether it is known.
func (r *Resource) SizeMB() (float64, bool) {
	if r == nil || r.Size <= 0 {
		return 0, false
	}
	return float64(r.Size) / (1024 * 1024), true
}

// Age reports how long ago the resource was published relative to now.
func (r *Resource) Age(now time.Time) (time.Duration, bool) {
	if r == nil || r.PublishedAt == nil || r.PublishedAt.IsZero() {
		return 0, false
	}
	age := now.Sub(*r.PublishedAt)
	if age < 0 {
		age = 0
	}
	return age, true
}

// Label returns a short human-readable identifier for logs and tables.
func (r *Resource) Label() string {
	if r == nil {
		return ""
	}
	if title := strings.TrimSpace(r.Title); title != "" {
		return title
	}
	if desc := strings.TrimSpace(r.Description); desc != "" {
		return desc
	}
	return r.PageURL
}
