package presell

import "fmt"

// CaptureWidths lists the viewport widths captured for every campaign,
// widest first. The client-side swap script and the screenshot file layout
// both assume this exact, gap-free set, which is why capture is
// all-or-nothing.
var CaptureWidths = []int{
	2560, 2400, 2240, 2080, 1920,
	1760, 1600, 1440, 1280, 1120,
	1024, 960, 896, 824, 768,
	640, 540, 480, 414, 360,
}

// ClosestWidth returns the element of widths nearest to w. Ties resolve to
// the first minimum encountered in slice order, so with the canonical
// descending set the wider candidate wins a tie.
func ClosestWidth(w int, widths []int) int {
	if len(widths) == 0 {
		return 0
	}
	best := widths[0]
	bestDist := absInt(w - best)
	for _, candidate := range widths[1:] {
		if d := absInt(w - candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

// ScreenshotPath returns the store-relative path for one captured width.
func ScreenshotPath(campaignID string, width int) string {
	return fmt.Sprintf("campaign-%s/screenshot_%d.jpeg", campaignID, width)
}

// ScreenshotPrefix returns the store-relative directory holding one
// campaign's captures.
func ScreenshotPrefix(campaignID string) string {
	return fmt.Sprintf("campaign-%s", campaignID)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
