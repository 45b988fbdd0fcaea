package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxMetadataValueBytes is the provider's per-value metadata limit
const MaxMetadataValueBytes = 500

// Metadata keys written on payment intents and read back by the webhook
const (
	MetaOrderNumber         = "orderNumber"
	MetaFirstName           = "firstName"
	MetaLastName            = "lastName"
	MetaEmail               = "email"
	MetaShippingMethod      = "shippingMethod"
	MetaNotes               = "notes"
	MetaOrderItems          = "orderItems"
	MetaOrderItemsTotal     = "orderItemsTotal"
	MetaOrderItemsTruncated = "orderItemsTruncated"
	MetaCheckoutSessionID   = "checkout_session_id"
)

// MetadataItem is one purchased line as carried in intent metadata
type MetadataItem struct {
	ProductID string           `json:"productId"`
	Name      string           `json:"name,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Quantity  int              `json:"quantity"`
}

type compactItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// EncodeStats describes how EncodeOrderItems fitted the items into the budget
type EncodeStats struct {
	Total     int
	Full      int
	Compacted int
	Dropped   int
}

// Truncated reports whether any item lost detail or was left out
func (s EncodeStats) Truncated() bool {
	return s.Compacted > 0 || s.Dropped > 0
}

// EncodeOrderItems serializes items as a JSON array of at most limit bytes.
// Items keep their full form while they fit, then fall back to {productId, quantity},
// and whatever still does not fit is dropped. The output always parses.
func EncodeOrderItems(items []MetadataItem, limit int) (string, EncodeStats, error) {
	stats := EncodeStats{Total: len(items)}

	var buf bytes.Buffer
	buf.WriteByte('[')
	compact := false

	for i, item := range items {
		full, err := json.Marshal(item)
		if err != nil {
			return "", stats, fmt.Errorf("marshal order item %s: %w", item.ProductID, err)
		}
		short, err := json.Marshal(compactItem{ProductID: item.ProductID, Quantity: item.Quantity})
		if err != nil {
			return "", stats, fmt.Errorf("marshal order item %s: %w", item.ProductID, err)
		}

		sep := 0
		if buf.Len() > 1 {
			sep = 1
		}

		// +1 for the closing bracket
		switch {
		case !compact && buf.Len()+sep+len(full)+1 <= limit:
			appendElem(&buf, full)
			stats.Full++
		case buf.Len()+sep+len(short)+1 <= limit:
			compact = true
			appendElem(&buf, short)
			stats.Compacted++
		default:
			stats.Dropped = len(items) - i
			buf.WriteByte(']')
			return buf.String(), stats, nil
		}
	}

	buf.WriteByte(']')
	return buf.String(), stats, nil
}

func appendElem(buf *bytes.Buffer, elem []byte) {
	if buf.Len() > 1 {
		buf.WriteByte(',')
	}
	buf.Write(elem)
}

// DecodeOrderItems parses the orderItems metadata value.
// Lines without a product id are skipped and a missing quantity counts as one.
func DecodeOrderItems(raw string) ([]MetadataItem, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var items []MetadataItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse order items: %w", err)
	}

	out := make([]MetadataItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		out = append(out, item)
	}
	return out, nil
}

// TruncateValue cuts s to at most limit bytes without splitting a UTF-8 sequence
func TruncateValue(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
