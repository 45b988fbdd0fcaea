package payments

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// NewOrderNumber returns ORD-<last six digits of unix millis>-<0..999>
func NewOrderNumber(now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	return fmt.Sprintf("ORD-%s-%d", millis, rand.Intn(1000))
}

// FallbackIntentOrderNumber names an order whose intent carried no order number
func FallbackIntentOrderNumber(now time.Time, paymentIntentID string) string {
	suffix := paymentIntentID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return fmt.Sprintf("PI-%d-%s", now.UnixMilli(), suffix)
}

// FallbackSessionOrderNumber names an order whose session carried no order number
func FallbackSessionOrderNumber(now time.Time) string {
	return fmt.Sprintf("order-%d", now.UnixMilli())
}
