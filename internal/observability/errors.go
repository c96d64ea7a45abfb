package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/baxromumarov/pagewatch/internal/content"
	"github.com/baxromumarov/pagewatch/internal/httpx"
	"github.com/baxromumarov/pagewatch/internal/notify"
	"github.com/baxromumarov/pagewatch/internal/store"
)

const (
	ErrorNetwork   = "network"
	ErrorParsing   = "parsing"
	ErrorRateLimit = "rate_limit"
	ErrorStore     = "store"
	ErrorDelivery  = "delivery"
	ErrorCanceled  = "canceled"
	ErrorUnknown   = "unknown"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCanceled
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		if fe.Status == http.StatusTooManyRequests {
			return ErrorRateLimit
		}
		return ErrorNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	return ErrorUnknown
}

// Classify maps any pipeline error to one of the Error* kinds.
func Classify(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	var (
		ee *content.ExtractionError
		se *store.StorageError
		de *notify.DeliveryError
	)
	switch {
	case errors.As(err, &ee):
		return ErrorParsing
	case errors.As(err, &se):
		return ErrorStore
	case errors.As(err, &de):
		if de.Status == http.StatusTooManyRequests {
			return ErrorRateLimit
		}
		return ErrorDelivery
	}
	return ErrorUnknown
}
