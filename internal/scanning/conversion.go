package scanning

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/zombor/billed/internal/bill"
)

// maxScanDimension bounds the image sent to the model. Phone photos are
// often far larger than needed to read a receipt.
const maxScanDimension = 2000

// receiptScanPrompt is the shared prompt used by all LLM providers
var receiptScanPrompt = `You are reading a photo of a receipt submitted with an employee expense report. Extract:

1. **name**: a short description of the expense starting with the merchant name, e.g. "SNCF - Paris Lyon".
2. **type**: the expense category, exactly one of: ` + strings.Join(bill.Categories, ", ") + `. Use "" if none fits.
3. **date**: the transaction date in ISO 8601 format (YYYY-MM-DD).
4. **amount**: the total amount paid including taxes, as a number.
5. **vat**: the VAT (TVA) amount, as a number, 0 if not shown.

Return ONLY valid JSON in this exact format:
{
  "name": "Merchant - Description",
  "type": "Transports",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "vat": 0.00
}

Do not include any text before or after the JSON and do not use markdown code blocks.`

// prepareImage decodes a jpeg or png receipt, shrinks it to fit
// maxScanDimension and re-encodes it as PNG.
func prepareImage(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType != "" && mimeType != "image/png" && mimeType != "image/jpeg" {
		return nil, fmt.Errorf("unsupported image type %q", contentType)
	}

	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxScanDimension || bounds.Dy() > maxScanDimension {
		img = imaging.Fit(img, maxScanDimension, maxScanDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// trimModelOutput strips markdown fences some models add around JSON.
func trimModelOutput(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
