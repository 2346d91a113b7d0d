// Package passes issues signed QR entry passes for registrations.
package passes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"ms-registration/internal/models"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPass = errors.New("invalid pass")

// Pass is what a scanned QR code proves.
type Pass struct {
	RegistrationID string `json:"registrationId"`
	EventTitle     string `json:"eventTitle"`
	Seat           string `json:"seat,omitempty"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

func PassFor(reg *models.Registration) Pass {
	p := Pass{RegistrationID: reg.ID, EventTitle: reg.EventTitle}
	if reg.HasSeat() {
		p.Seat = fmt.Sprintf("%s-%d", reg.SeatRow, reg.SeatColumn)
	}
	return p
}

// Token is the QR payload: base64url(id|event|seat) "." base64url(hmac).
func (g *Generator) Token(p Pass) string {
	payload := strings.Join([]string{p.RegistrationID, p.EventTitle, p.Seat}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." +
		base64.RawURLEncoding.EncodeToString(g.sign([]byte(payload)))
}

func (g *Generator) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// PNG renders the registration's pass as a QR code image.
func (g *Generator) PNG(reg *models.Registration, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(g.Token(PassFor(reg)), qrcode.Medium, size)
}

func (g *Generator) Verify(token string) (Pass, error) {
	encPayload, encSig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok {
		return Pass{}, ErrInvalidPass
	}
	payload, err := base64.RawURLEncoding.DecodeString(encPayload)
	if err != nil {
		return Pass{}, ErrInvalidPass
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return Pass{}, ErrInvalidPass
	}
	if !hmac.Equal(sig, g.sign(payload)) {
		return Pass{}, ErrInvalidPass
	}

	// Registration IDs and seat labels never contain "|", titles may.
	id, rest, ok := strings.Cut(string(payload), "|")
	if !ok {
		return Pass{}, ErrInvalidPass
	}
	sep := strings.LastIndex(rest, "|")
	if sep < 0 {
		return Pass{}, ErrInvalidPass
	}
	p := Pass{RegistrationID: id, EventTitle: rest[:sep], Seat: rest[sep+1:]}
	if p.RegistrationID == "" || p.EventTitle == "" {
		return Pass{}, ErrInvalidPass
	}
	return p, nil
}
