// Package recognize derives release attributes from listing titles and
// subtitles.
//
// Sites publish a free-form title ("Movie 2023 2160p UHD BluRay REMUX HEVC
// DV-GRP") and often a Chinese subtitle line. Each attribute is decided by an
// include pattern and an optional exclude pattern over the width-folded text,
// so full-width characters typed by CJK input methods match the same way.
package recognize
