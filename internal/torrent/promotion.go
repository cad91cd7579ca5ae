package torrent

import "fmt"

var promotionLabels = map[string]string{
	"1.0 1.0": "普通",
	"1.0 0.0": "免费",
	"2.0 1.0": "2X",
	"2.0 0.0": "2X免费",
	"1.0 0.5": "50%",
	"2.0 0.5": "2X 50%",
	"1.0 0.7": "70%",
	"1.0 0.3": "30%",
}

// PromotionLabel renders the site promotion implied by the volume factors.
// Unknown or unusual combinations render as "未知".
func (r *Resource) PromotionLabel() string {
	if r == nil || r.UploadFactor == nil || r.DownloadFactor == nil {
		return "未知"
	}
	key := fmt.Sprintf("%.1f %.1f", *r.UploadFactor, *r.DownloadFactor)
	if label, ok := promotionLabels[key]; ok {
		return label
	}
	return "未知"
}
