package aliexpress

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TimestampFormat is pinned per deployment; the signature is computed over the rendered value.
type TimestampFormat int

const (
	TimestampEpochSeconds TimestampFormat = iota + 1
	TimestampEpochMillis
	// TimestampDateTime renders "2006-01-02 15:04:05" in the platform's UTC+8 zone.
	TimestampDateTime
)

const dateTimeLayout = "2006-01-02 15:04:05"

var platformZone = time.FixedZone("UTC+8", 8*60*60)

// ParseTimestampFormat maps configuration values onto a TimestampFormat.
func ParseTimestampFormat(raw string) (TimestampFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "epoch", "epoch-seconds", "seconds":
		return TimestampEpochSeconds, nil
	case "epoch-millis", "millis":
		return TimestampEpochMillis, nil
	case "datetime":
		return TimestampDateTime, nil
	default:
		return 0, fmt.Errorf("unknown timestamp format %q", raw)
	}
}

// Format renders t for the timestamp parameter.
func (f TimestampFormat) Format(t time.Time) string {
	switch f {
	case TimestampEpochMillis:
		return strconv.FormatInt(t.UnixMilli(), 10)
	case TimestampDateTime:
		return t.In(platformZone).Format(dateTimeLayout)
	default:
		return strconv.FormatInt(t.Unix(), 10)
	}
}

func (f TimestampFormat) String() string {
	switch f {
	case TimestampEpochSeconds:
		return "epoch-seconds"
	case TimestampEpochMillis:
		return "epoch-millis"
	case TimestampDateTime:
		return "datetime"
	default:
		return fmt.Sprintf("timestamp(%d)", int(f))
	}
}

// Clock supplies the instant stamped on each request.
type Clock interface {
	Now(ctx context.Context) time.Time
}

// LocalClock uses the host clock.
type LocalClock struct{}

func (LocalClock) Now(context.Context) time.Time {
	return time.Now()
}

// ServerClock reads the Date header of the API host so requests are stamped with
// the platform's notion of time. It falls back to the host clock on any failure.
// The Date header has second resolution, so the host clock's sub-second part is
// added on top of it and epoch-millis stamps do not all end in 000.
type ServerClock struct {
	httpClient *http.Client
	url        string
	logger     *zap.Logger
	fallback   func() time.Time
}

// NewServerClock constructs a ServerClock that sends HEAD requests to url.
func NewServerClock(client *http.Client, url string, logger *zap.Logger) *ServerClock {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerClock{httpClient: client, url: url, logger: logger, fallback: time.Now}
}

func (c *ServerClock) Now(ctx context.Context) time.Time {
	local := c.fallback()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		c.logger.Warn("server clock request", zap.Error(err))
		return local
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("server clock unavailable; using local time", zap.Error(err))
		return local
	}
	resp.Body.Close()

	header := resp.Header.Get("Date")
	if header == "" {
		c.logger.Warn("server clock response has no Date header; using local time")
		return local
	}
	serverTime, err := http.ParseTime(header)
	if err != nil {
		c.logger.Warn("server clock Date header unparseable; using local time", zap.String("date", header), zap.Error(err))
		return local
	}
	serverTime = serverTime.Add(time.Duration(local.Nanosecond()))
	c.logger.Debug("server clock", zap.Time("server", serverTime), zap.Duration("skew", local.Sub(serverTime)))
	return serverTime
}
