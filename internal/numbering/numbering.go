// Package numbering renders human-facing document numbers from templates.
//
// Supported tokens: {YYYY} {YY} {MM} {DD} {CUSTOMER} and {RANDn}, where n is
// the zero-padded width of a random decimal.
package numbering

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/wastebill/internal/billingerr"
)

const (
	InvoiceTemplate = "INV{RAND6}-{CUSTOMER}"
	ReceiptTemplate = "RCPT{RAND8}"

	DefaultAttempts = 5
)

var (
	randPadRe = regexp.MustCompile(`\{RAND(\d+)\}`)

	ErrExhausted = billingerr.New(billingerr.ErrConflict, "document_number_exhausted")
)

// Tokens are the values substituted into a template.
type Tokens struct {
	IssuedAt time.Time
	Customer string
}

// Generator renders numbers and retries on collision.
type Generator struct {
	intn func(n int64) int64
}

func New() *Generator {
	return &Generator{intn: rand.Int64N}
}

// NewWithSource uses intn for random tokens.
func NewWithSource(intn func(n int64) int64) *Generator {
	return &Generator{intn: intn}
}

// Format renders template once.
func (g *Generator) Format(template string, tokens Tokens) (string, error) {
	if template == "" {
		return "", fmt.Errorf("number template is empty")
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", tokens.IssuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", tokens.IssuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", tokens.IssuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", tokens.IssuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{CUSTOMER}", tokens.Customer)

	out = randPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := randPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 || width > 18 {
			return m
		}
		limit := int64(1)
		for range width {
			limit *= 10
		}
		return fmt.Sprintf("%0*d", width, g.intn(limit))
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in number format: %s", out)
	}
	return out, nil
}

// Next renders template until exists reports a free number or attempts run out.
func (g *Generator) Next(ctx context.Context, template string, tokens Tokens, attempts int, exists func(context.Context, string) (bool, error)) (string, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for range attempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := g.Format(template, tokens)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}
