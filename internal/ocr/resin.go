package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
	pimaging "github.com/ironsheep/plastic-detect-mcp/internal/imaging"
)

// resinWhitelist limits recognition to the characters that appear in resin
// identification marks: code digits and the family acronyms.
const resinWhitelist = "0123456789ABCDEHLOPRSTV-"

// Preprocessing parameters. Resin marks are small and embossed, so crops are
// upsampled until the short side reaches minSide and contrast is pushed hard.
const (
	minSide       = 96
	maxUpsample   = 8.0
	contrastBoost = 0.6
	cropPadding   = 0.05
)

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// ResinReading is the result of reading a resin identification mark inside
// one detection.
type ResinReading struct {
	// Text is everything Tesseract recognized in the crop, whitespace trimmed.
	Text string `json:"text"`

	// Confidence is the mean word confidence (0.0 to 1.0), or 0 when no word
	// boxes were reported.
	Confidence float64 `json:"confidence"`

	// Material is the family implied by Text; Unknown when nothing matched.
	Material detect.Material `json:"material"`

	// ResinCode is Material's identification code, 0 for Unknown.
	ResinCode int `json:"resin_code"`

	// Bounds is the region that was read, in source pixels.
	Bounds Bounds `json:"bounds"`
}

// ReadResinCode runs OCR on the area of img covered by box and interprets
// the recognized text as a resin identification code.
//
// Parameters:
//   - img: The full source image.
//   - box: The detection's normalized [x1, y1, x2, y2] box.
//
// The region is padded slightly, upsampled, converted to grayscale and
// contrast enhanced before it is handed to Tesseract as an in-memory PNG.
//
// Returns an error if the box misses the image or Tesseract fails. A
// successful read that matches no material is not an error; Material is
// Unknown in that case.
func ReadResinCode(img image.Image, box detect.Box) (*ResinReading, error) {
	rect := pimaging.DetectionRect(img, box, cropPadding)
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %s does not overlap the image", box)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img, rect)); err != nil {
		return nil, fmt.Errorf("failed to encode OCR input: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetWhitelist(resinWhitelist); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	text = strings.TrimSpace(text)

	reading := &ResinReading{
		Text: text,
		Bounds: Bounds{
			X1: rect.Min.X,
			Y1: rect.Min.Y,
			X2: rect.Max.X,
			Y2: rect.Max.Y,
		},
	}
	reading.Material, reading.ResinCode = MaterialFromText(text)

	// Confidence is best effort; the text is still useful without it.
	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil {
		reading.Confidence = meanWordConfidence(boxes)
	}

	return reading, nil
}

func meanWordConfidence(boxes []gosseract.BoundingBox) float64 {
	sum, n := 0.0, 0
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += float64(b.Confidence) / 100.0
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Preprocess crops rect out of img and prepares it for OCR: upsampling so
// the short side is at least minSide pixels (capped at maxUpsample), then
// grayscale conversion and a contrast boost.
func Preprocess(img image.Image, rect image.Rectangle) *image.Gray {
	crop := imaging.Crop(img, rect)

	w, h := crop.Bounds().Dx(), crop.Bounds().Dy()
	short := w
	if h < short {
		short = h
	}
	if short > 0 && short < minSide {
		scale := float64(minSide) / float64(short)
		if scale > maxUpsample {
			scale = maxUpsample
		}
		crop = imaging.Resize(crop, int(float64(w)*scale), int(float64(h)*scale), imaging.CatmullRom)
	}

	return effect.Grayscale(adjust.Contrast(crop, contrastBoost))
}

// MaterialFromText interprets OCR output from a resin identification mark.
//
// The text is upper-cased and split into alphanumeric tokens. A family
// acronym (PET, PETE, HDPE, PVC, LDPE, PP, PS, OTHER) takes precedence over a
// bare code digit, since digits inside the recycling triangle are the part
// most often misread. Leading zeros on digits are ignored ("05" is 5).
//
// Returns Unknown and 0 when nothing matches.
func MaterialFromText(text string) (detect.Material, int) {
	tokens := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-')
	})

	code := 0
	for _, tok := range tokens {
		if n, err := strconv.Atoi(strings.Trim(tok, "-")); err == nil {
			if code == 0 && n >= 1 && n <= 7 {
				code = n
			}
			continue
		}
		if len(tok) < 2 {
			continue
		}
		if m := detect.ParseMaterial(tok); m != detect.Unknown {
			return m, m.ResinCode()
		}
	}

	m := detect.MaterialFromCode(code)
	return m, m.ResinCode()
}
