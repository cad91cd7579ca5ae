package torrent

import (
	"sort"
	"strings"

	"golang.org/x/text/width"
)

// Built-in rule token names.
const (
	TokenBluRay     = "BLU"
	TokenRemux      = "REMUX"
	TokenWebDL      = "WEB-DL"
	TokenUHD        = "4K"
	TokenFullHD     = "1080P"
	TokenHD         = "720P"
	TokenChineseSub = "CN"
	TokenChineseDub = "国语配音"
	TokenH265       = "H265"
	TokenH264       = "H264"
	TokenDolby      = "DOLBY"
	TokenHDR        = "HDR"
	TokenFree       = "FREE"
	TokenThreeD     = "3D"
	TokenHighFPS    = "60FPS"
	TokenHitAndRun  = "HR"
)

// Accessor reads one boolean property of a resource. known is false when the
// property was never determined.
type Accessor func(*Resource) (value, known bool)

// TokenInfo describes a built-in token for listings and help output.
type TokenInfo struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
}

type builtin struct {
	info TokenInfo
	get  Accessor
}

func attr(field func(*Attributes) *bool) Accessor {
	return func(r *Resource) (bool, bool) {
		if r == nil {
			return false, false
		}
		v := field(&r.Attributes)
		if v == nil {
			return false, false
		}
		return *v, true
	}
}

var builtins = []builtin{
	{TokenInfo{TokenBluRay, nil, "Blu-ray original disc (BDMV/ISO, not an encode)"}, attr(func(a *Attributes) *bool { return a.BluRay })},
	{TokenInfo{TokenRemux, nil, "Remux of a disc source"}, attr(func(a *Attributes) *bool { return a.Remux })},
	{TokenInfo{TokenWebDL, []string{"WEBDL"}, "WEB-DL or WEBRip source"}, attr(func(a *Attributes) *bool { return a.WebDL })},
	{TokenInfo{TokenUHD, []string{"2160P", "UHD"}, "2160p / 4K resolution"}, attr(func(a *Attributes) *bool { return a.UHD })},
	{TokenInfo{TokenFullHD, nil, "1080p/1080i resolution"}, attr(func(a *Attributes) *bool { return a.FullHD })},
	{TokenInfo{TokenHD, nil, "720p resolution"}, attr(func(a *Attributes) *bool { return a.HD })},
	{TokenInfo{TokenChineseSub, []string{"CNSUB", "中字"}, "Chinese subtitles"}, attr(func(a *Attributes) *bool { return a.ChineseSub })},
	{TokenInfo{TokenChineseDub, []string{"CNVOI", "国配"}, "Mandarin dubbed audio"}, attr(func(a *Attributes) *bool { return a.ChineseDub })},
	{TokenInfo{TokenH265, []string{"HEVC", "X265"}, "H.265/HEVC video"}, attr(func(a *Attributes) *bool { return a.H265 })},
	{TokenInfo{TokenH264, []string{"AVC", "X264"}, "H.264/AVC video"}, attr(func(a *Attributes) *bool { return a.H264 })},
	{TokenInfo{TokenDolby, []string{"DV", "DOVI"}, "Dolby Vision"}, attr(func(a *Attributes) *bool { return a.Dolby })},
	{TokenInfo{TokenHDR, nil, "HDR10/HDR10+"}, attr(func(a *Attributes) *bool { return a.HDR })},
	{TokenInfo{TokenFree, nil, "Free-leech: download does not count against ratio"}, freeAccessor},
	{TokenInfo{TokenThreeD, nil, "Stereoscopic 3D"}, attr(func(a *Attributes) *bool { return a.ThreeD })},
	{TokenInfo{TokenHighFPS, nil, "60 frames per second"}, attr(func(a *Attributes) *bool { return a.HighFPS })},
	{TokenInfo{TokenHitAndRun, nil, "Site enforces hit-and-run seeding"}, hitAndRunAccessor},
}

var byName map[string]*builtin

func init() {
	byName = make(map[string]*builtin, len(builtins)*2)
	for i := range builtins {
		b := &builtins[i]
		byName[b.info.Name] = b
		for _, alias := range b.info.Aliases {
			byName[alias] = b
		}
	}
}

func freeAccessor(r *Resource) (bool, bool) {
	if r == nil {
		return false, false
	}
	if r.Attributes.Free != nil {
		return *r.Attributes.Free, true
	}
	if r.DownloadFactor != nil {
		return *r.DownloadFactor == 0, true
	}
	return false, false
}

func hitAndRunAccessor(r *Resource) (bool, bool) {
	if r == nil {
		return false, false
	}
	return r.HitAndRun, true
}

// NormalizeToken canonicalises a token spelling for lookup. Full-width
// characters fold to their narrow forms the same way rule text does.
func NormalizeToken(name string) string {
	return strings.ToUpper(strings.TrimSpace(width.Narrow.String(name)))
}

// Lookup resolves a token name or alias to its canonical name and accessor.
func Lookup(name string) (string, Accessor, bool) {
	b, ok := byName[NormalizeToken(name)]
	if !ok {
		return "", nil, false
	}
	return b.info.Name, b.get, true
}

// IsBuiltin reports whether name (or an alias) is a built-in token.
func IsBuiltin(name string) bool {
	_, ok := byName[NormalizeToken(name)]
	return ok
}

// Tokens lists the built-in tokens sorted by name.
func Tokens() []TokenInfo {
	out := make([]TokenInfo, 0, len(builtins))
	for _, b := range builtins {
		info := b.info
		info.Aliases = append([]string(nil), b.info.Aliases...)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
