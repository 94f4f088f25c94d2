package market

import "sort"

// resolutionSeconds maps the chart API's resolution labels to bucket lengths.
// "D" is the only non-minute label the frontend requests.
var resolutionSeconds = map[string]int64{
	"1":   60,
	"3":   180,
	"5":   300,
	"15":  900,
	"30":  1800,
	"60":  3600,
	"120": 7200,
	"240": 14400,
	"D":   86400,
}

// ResolutionSeconds returns the bucket length for a resolution label.
func ResolutionSeconds(label string) (int64, bool) {
	sec, ok := resolutionSeconds[label]
	return sec, ok
}

// SupportedResolutions lists every resolution label, shortest bucket first.
func SupportedResolutions() []string {
	labels := make([]string, 0, len(resolutionSeconds))
	for label := range resolutionSeconds {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return resolutionSeconds[labels[i]] < resolutionSeconds[labels[j]]
	})
	return labels
}
