package qr

import (
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Generator renders the QR code a customer scans to reopen their ticket page.
type Generator struct {
	baseURL string
	size    int
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: baseURL, size: defaultSize}
}

// TicketURL is the public page for a ticket code.
func (g *Generator) TicketURL(code string) string {
	return fmt.Sprintf("%s/ticket/%s", g.baseURL, url.PathEscape(code))
}

// TicketPNG encodes TicketURL as a PNG image.
func (g *Generator) TicketPNG(code string) ([]byte, error) {
	png, err := qrcode.Encode(g.TicketURL(code), qrcode.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for ticket %s: %w", code, err)
	}
	return png, nil
}
