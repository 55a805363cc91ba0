package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type ctxKey string

const reqStartKey ctxKey = "reqStart"

type transportWithLogger struct {
	Transport http.RoundTripper
}

func NewTransportWithLogger(transport http.RoundTripper) *transportWithLogger {
	return &transportWithLogger{Transport: transport}
}

func (t *transportWithLogger) RoundTrip(req *http.Request) (*http.Response, error) {

	ctx := context.WithValue(req.Context(), reqStartKey, time.Now())
	req = req.WithContext(ctx)

	log.Info().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("API request:")

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	var respBodyBytes []byte
	if resp.Body != nil {
		respBodyBytes, _ = io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewBuffer(respBodyBytes))
	}

	var event = log.Info()
	switch {
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		event = log.Warn()
	case resp.StatusCode >= http.StatusInternalServerError:
		event = log.Error()
	}

	event = event.Str("method", resp.Request.Method).
		Str("url", resp.Request.URL.String()).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(ctx.Value(reqStartKey).(time.Time)))

	if len(respBodyBytes) > 0 && json.Valid(respBodyBytes) {
		event = event.RawJSON("body", respBodyBytes)
	}

	event.Msg("API response:")

	return resp, nil
}
