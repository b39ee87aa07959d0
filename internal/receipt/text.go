package receipt

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
)

const defaultWidth = 40

// TextRenderer prints a fixed-width slip for thermal printers.
type TextRenderer struct {
	Width int
}

func (r TextRenderer) Format() string { return "text" }

func (r TextRenderer) Render(ctx context.Context, d *Data) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotCompleted
	}
	width := r.Width
	if width < 24 {
		width = defaultWidth
	}

	var b bytes.Buffer
	rule := strings.Repeat("-", width) + "\n"

	b.WriteString(center(d.StoreName, width))
	if d.StoreAddress != "" {
		b.WriteString(center(d.StoreAddress, width))
	}
	if d.StorePhone != "" {
		b.WriteString(center(d.StorePhone, width))
	}
	b.WriteString(rule)
	b.WriteString(columns("No", d.Number, width))
	b.WriteString(columns("Date", d.CompletedAt.Format("02/01/2006 15:04"), width))
	if d.Cashier != "" {
		b.WriteString(columns("Cashier", d.Cashier, width))
	}
	b.WriteString(rule)

	for _, line := range d.Items {
		b.WriteString(truncate(line.Name, width) + "\n")
		qty := fmt.Sprintf("  %d x %s", line.Quantity, FormatAmount(line.UnitPrice))
		b.WriteString(columns(qty, FormatAmount(line.Subtotal), width))
	}

	b.WriteString(rule)
	b.WriteString(columns("TOTAL", FormatAmount(d.Total), width))
	b.WriteString(columns(d.PaymentMethod, FormatAmount(d.PaymentAmount), width))
	b.WriteString(columns("CHANGE", FormatAmount(d.ChangeAmount), width))
	b.WriteString(rule)
	if d.Note != "" {
		b.WriteString(truncate(d.Note, width) + "\n")
	}
	b.WriteString(center("Thank you", width))

	return &Artifact{
		Filename:    "receipt-" + d.Number + ".txt",
		ContentType: "text/plain; charset=utf-8",
		Body:        b.Bytes(),
	}, nil
}

// FormatAmount groups thousands with dots: 1250000 -> 1.250.000.
func FormatAmount(v int64) string {
	neg := v < 0
	mag := uint64(v)
	if neg {
		// -(v+1) stays in range for math.MinInt64
		mag = uint64(-(v + 1)) + 1
	}
	digits := strconv.FormatUint(mag, 10)
	var out strings.Builder
	if neg {
		out.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	out.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		out.WriteByte('.')
		out.WriteString(digits[i : i+3])
	}
	return out.String()
}

func columns(left, right string, width int) string {
	gap := width - len([]rune(left)) - len([]rune(right))
	if gap < 1 {
		left = truncate(left, width-len([]rune(right))-1)
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

func center(s string, width int) string {
	s = truncate(s, width)
	pad := (width - len([]rune(s))) / 2
	return strings.Repeat(" ", pad) + s + "\n"
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width < 0 {
		width = 0
	}
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
