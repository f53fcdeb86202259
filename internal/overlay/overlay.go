// Package overlay synthesizes the consent modal injected into delivered
// pages. The block is self-contained: inline styles only, so it renders the
// same regardless of the host page's own CSS.
package overlay

import (
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"sort"
	"strings"

	"github.com/presellkit/presell-engine/internal/presell"
)

// highContrastBackgrounds flip the modal text to white with a text-shadow.
// Everything else uses a fixed dark gray.
var highContrastBackgrounds = map[string]bool{
	"#000":    true,
	"#000000": true,
	"#111111": true,
	"#1a1a1a": true,
	"#222222": true,
	"#b71c1c": true,
	"#d32f2f": true,
	"#0d47a1": true,
	"#1565c0": true,
	"#2e7d32": true,
}

var safeColor = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$|^[a-zA-Z]{3,20}$`)

const (
	defaultBackground = "#ffffff"
	defaultBorder     = "#dddddd"
	darkText          = "#333333"
)

// Injector renders the overlay block and the screenshot host page.
type Injector struct {
	block    *template.Template
	shotPage *template.Template
}

// New builds an Injector with its templates parsed.
func New() *Injector {
	return &Injector{
		block:    template.Must(template.New("overlay").Parse(blockTemplate)),
		shotPage: template.Must(template.New("screenshot").Parse(screenshotTemplate)),
	}
}

// InjectIntoClone splices the overlay block immediately before the closing
// body tag of already-rewritten HTML. Documents without a body tag get the
// block appended, which browsers render the same way.
func (inj *Injector) InjectIntoClone(doc string, campaignID string, cfg presell.OverlayConfig) (string, error) {
	block, err := inj.renderBlock(campaignID, cfg)
	if err != nil {
		return "", err
	}
	idx := strings.LastIndex(strings.ToLower(doc), "</body>")
	if idx < 0 {
		return doc + block, nil
	}
	return doc[:idx] + block + doc[idx:], nil
}

// RenderScreenshotPage synthesizes a standalone document whose body is a
// full-viewport screenshot plus the overlay block. The inline script swaps
// the image to the closest captured width on load and on resize.
func (inj *Injector) RenderScreenshotPage(index map[int]string, campaignID string, cfg presell.OverlayConfig) (string, error) {
	if len(index) == 0 {
		return "", fmt.Errorf("screenshot index is empty")
	}
	widths := make([]int, 0, len(index))
	for w := range index {
		widths = append(widths, w)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(widths)))

	block, err := inj.renderBlock(campaignID, cfg)
	if err != nil {
		return "", err
	}

	widthsJSON, err := json.Marshal(widths)
	if err != nil {
		return "", fmt.Errorf("marshal widths: %w", err)
	}
	indexJSON, err := json.Marshal(stringKeyed(index))
	if err != nil {
		return "", fmt.Errorf("marshal index: %w", err)
	}

	var out strings.Builder
	err = inj.shotPage.Execute(&out, shotPageData{
		Title:        cfg.Title,
		InitialPath:  index[widths[0]],
		WidthsJSON:   template.JS(widthsJSON),
		IndexJSON:    template.JS(indexJSON),
		OverlayBlock: template.HTML(block),
	})
	if err != nil {
		return "", fmt.Errorf("render screenshot page: %w", err)
	}
	return out.String(), nil
}

type shotPageData struct {
	Title        string
	InitialPath  string
	WidthsJSON   template.JS
	IndexJSON    template.JS
	OverlayBlock template.HTML
}

type blockData struct {
	Title        string
	Message      string
	AcceptLabel  string
	CloseLabel   string
	ModalStyle   template.CSS
	TextStyle    template.CSS
	AcceptStyle  template.CSS
	CloseStyle   template.CSS
	ClickURLJSON template.JS
	RedirectJSON template.JS
}

func (inj *Injector) renderBlock(campaignID string, cfg presell.OverlayConfig) (string, error) {
	clickJSON, err := json.Marshal(fmt.Sprintf("/campaigns/%s/click", campaignID))
	if err != nil {
		return "", fmt.Errorf("marshal click url: %w", err)
	}
	redirectJSON, err := json.Marshal(cfg.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("marshal redirect url: %w", err)
	}

	acceptLabel := cfg.AcceptLabel
	if acceptLabel == "" {
		acceptLabel = "Continue"
	}
	closeLabel := cfg.CloseLabel
	if closeLabel == "" {
		closeLabel = "Close"
	}

	var out strings.Builder
	err = inj.block.Execute(&out, blockData{
		Title:        cfg.Title,
		Message:      cfg.Message,
		AcceptLabel:  acceptLabel,
		CloseLabel:   closeLabel,
		ModalStyle:   modalStyle(cfg),
		TextStyle:    textStyle(cfg),
		AcceptStyle:  buttonStyle(cfg.AcceptPosition, cfg.AcceptShadow, cfg.ShadowIntensity, true),
		CloseStyle:   buttonStyle(cfg.ClosePosition, cfg.CloseShadow, cfg.ShadowIntensity, false),
		ClickURLJSON: template.JS(clickJSON),
		RedirectJSON: template.JS(redirectJSON),
	})
	if err != nil {
		return "", fmt.Errorf("render overlay block: %w", err)
	}
	return out.String(), nil
}

func modalStyle(cfg presell.OverlayConfig) template.CSS {
	background := sanitizeColor(cfg.BackgroundColor, defaultBackground)
	border := sanitizeColor(cfg.BorderColor, defaultBorder)
	blur, spread := shadowScale(cfg.ShadowIntensity)
	return template.CSS(fmt.Sprintf(
		"position:relative;min-width:300px;max-width:460px;margin:16px;padding:24px 24px 76px;"+
			"border-radius:8px;background:%s;border:1px solid %s;"+
			"box-shadow:0 %dpx %dpx rgba(0,0,0,0.35);",
		background, border, blur, spread))
}

func textStyle(cfg presell.OverlayConfig) template.CSS {
	background := strings.ToLower(sanitizeColor(cfg.BackgroundColor, defaultBackground))
	if highContrastBackgrounds[background] {
		return template.CSS("color:#ffffff;text-shadow:0 1px 2px rgba(0,0,0,0.6);")
	}
	return template.CSS("color:" + darkText + ";")
}

func buttonStyle(pos presell.ButtonPosition, shadow bool, intensity int, accent bool) template.CSS {
	var b strings.Builder
	b.WriteString("position:absolute;padding:10px 18px;border-radius:4px;cursor:pointer;font-size:15px;")
	if accent {
		b.WriteString("border:none;background:#2e7d32;color:#ffffff;")
	} else {
		b.WriteString("border:1px solid #bbbbbb;background:#f5f5f5;color:#333333;")
	}
	switch pos {
	case presell.PositionBottomLeft:
		b.WriteString("left:16px;bottom:16px;")
	case presell.PositionTopRight:
		b.WriteString("right:16px;top:16px;")
	default: // bottom-right
		b.WriteString("right:16px;bottom:16px;")
	}
	if shadow {
		blur, spread := shadowScale(intensity)
		fmt.Fprintf(&b, "box-shadow:0 %dpx %dpx rgba(0,0,0,0.4);", blur/2+1, spread/2+1)
	}
	return template.CSS(b.String())
}

// shadowScale maps the configured intensity (1-3) to a blur/spread pair.
// Out-of-range values clamp to the nearest step.
func shadowScale(intensity int) (blur, spread int) {
	if intensity < 1 {
		intensity = 1
	}
	if intensity > 3 {
		intensity = 3
	}
	return intensity * 4, intensity * 10
}

func sanitizeColor(c, fallback string) string {
	trimmed := strings.TrimSpace(c)
	if trimmed == "" || !safeColor.MatchString(trimmed) {
		return fallback
	}
	return trimmed
}

func stringKeyed(index map[int]string) map[string]string {
	out := make(map[string]string, len(index))
	for w, path := range index {
		out[fmt.Sprintf("%d", w)] = path
	}
	return out
}
