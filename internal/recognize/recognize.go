package recognize

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"torrank/internal/torrent"
)

type matcher struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
	field   func(*torrent.Attributes) **bool
}

func (m matcher) match(text string) bool {
	if !m.include.MatchString(text) {
		return false
	}
	return m.exclude == nil || !m.exclude.MatchString(text)
}

var matchers = []matcher{
	{
		// Untouched discs only: encodes and web sources that mention the
		// Blu-ray origin are excluded.
		include: regexp.MustCompile(`(?i)Blu-?Ray.+VC-?1|Blu-?Ray.+AVC|UHD.+Blu-?Ray.+HEVC|MiniBD|\bBDMV\b|\bBDISO\b|原盘`),
		exclude: regexp.MustCompile(`(?i)[Hx]\.?26[45]|WEB-?DL|WEB-?RIP|REMUX`),
		field:   func(a *torrent.Attributes) **bool { return &a.BluRay },
	},
	{
		include: regexp.MustCompile(`(?i)\bREMUX\b`),
		field:   func(a *torrent.Attributes) **bool { return &a.Remux },
	},
	{
		include: regexp.MustCompile(`(?i)WEB-?DL|WEB-?RIP`),
		field:   func(a *torrent.Attributes) **bool { return &a.WebDL },
	},
	{
		include: regexp.MustCompile(`(?i)\b4k\b|2160[pi]|x2160`),
		field:   func(a *torrent.Attributes) **bool { return &a.UHD },
	},
	{
		include: regexp.MustCompile(`(?i)1080[pi]|x1080`),
		field:   func(a *torrent.Attributes) **bool { return &a.FullHD },
	},
	{
		include: regexp.MustCompile(`(?i)720[pi]|x720`),
		field:   func(a *torrent.Attributes) **bool { return &a.HD },
	},
	{
		include: regexp.MustCompile(`[中国國繁简](/|\s|\\|\|)?[繁简英粤]|[英简繁](/|\s|\\|\|)?[中繁简]|繁體|简体|[中国國][字配]|国语|國語|中文|中字|简日|繁日|简繁|繁体|(^|[\s,.\-\[])(CHT|CHS|cht|chs)($|[\s,.\-\]])`),
		field:   func(a *torrent.Attributes) **bool { return &a.ChineseSub },
	},
	{
		include: regexp.MustCompile(`(?i)国语|國語|国配|國配|普通话|普通話|\bMandarin\b`),
		field:   func(a *torrent.Attributes) **bool { return &a.ChineseDub },
	},
	{
		include: regexp.MustCompile(`(?i)[Hx]\.?265|HEVC`),
		field:   func(a *torrent.Attributes) **bool { return &a.H265 },
	},
	{
		include: regexp.MustCompile(`(?i)[Hx]\.?264|\bAVC\b`),
		field:   func(a *torrent.Attributes) **bool { return &a.H264 },
	},
	{
		include: regexp.MustCompile(`(?i)Dolby[\s.]+Vision|\bDOVI\b|\bDV\b|杜比视界`),
		field:   func(a *torrent.Attributes) **bool { return &a.Dolby },
	},
	{
		include: regexp.MustCompile(`(?i)\bHDR(?:10)?\b`),
		field:   func(a *torrent.Attributes) **bool { return &a.HDR },
	},
	{
		include: regexp.MustCompile(`(?i)\b3D\b`),
		field:   func(a *torrent.Attributes) **bool { return &a.ThreeD },
	},
	{
		include: regexp.MustCompile(`(?i)\b60\s?fps\b`),
		field:   func(a *torrent.Attributes) **bool { return &a.HighFPS },
	},
}

// Recognize decides every text-derived attribute for a title and subtitle.
// Blank input yields Attributes with every field unknown. FREE is never set
// here: it comes from the site's promotion factors.
func Recognize(title, description string) torrent.Attributes {
	var attrs torrent.Attributes
	text := normalize(title, description)
	if text == "" {
		return attrs
	}
	for _, m := range matchers {
		*m.field(&attrs) = torrent.Bool(m.match(text))
	}
	return attrs
}

// Fill sets attributes the resource does not already carry. Values supplied
// upstream always win over recognition.
func Fill(r *torrent.Resource) {
	if r == nil {
		return
	}
	recognized := Recognize(r.Title, r.Description)
	for _, m := range matchers {
		dst := m.field(&r.Attributes)
		if *dst == nil {
			*dst = *m.field(&recognized)
		}
	}
	if r.Attributes.Free == nil && r.DownloadFactor != nil {
		r.Attributes.Free = torrent.Bool(*r.DownloadFactor == 0)
	}
}

// FillAll returns filled copies of the resources and leaves the inputs
// untouched, so callers may share one slice across goroutines. Nil entries
// are dropped.
func FillAll(resources []*torrent.Resource) []*torrent.Resource {
	out := make([]*torrent.Resource, 0, len(resources))
	for _, r := range resources {
		if r == nil {
			continue
		}
		cp := *r
		Fill(&cp)
		out = append(out, &cp)
	}
	return out
}

func normalize(title, description string) string {
	parts := make([]string, 0, 2)
	for _, value := range []string{title, description} {
		if value = strings.TrimSpace(width.Narrow.String(value)); value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, " ")
}
