package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/wastebill/pkg/money"
)

const (
	dateOnlyLayout = "2006-01-02"
	monthLayout    = "2006-01"
)

var errInvalidPeriod = errors.New("invalid_period")

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parsePageSize(value string) (int32, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil || parsed < 0 {
		return 0, newValidationError("page_size", "invalid_page_size", "invalid page size")
	}
	return int32(parsed), nil
}

// parseOptionalPeriod accepts a billing month as YYYY-MM, a date or RFC 3339
// and returns the first day of that month in UTC.
func parseOptionalPeriod(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{monthLayout, dateOnlyLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			period := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
			return &period, nil
		}
	}
	return nil, errInvalidPeriod
}

type pageQuery struct {
	PageToken string
	PageSize  int32
}

func parsePageQuery(c *gin.Context) (pageQuery, error) {
	size, err := parsePageSize(c.Query("page_size"))
	if err != nil {
		return pageQuery{}, err
	}
	return pageQuery{
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  size,
	}, nil
}

// amountParam is a money amount in minor units. It decodes from a decimal
// string ("150.00") or a JSON number in major units.
type amountParam struct {
	Minor int64
	Set   bool
}

func (a *amountParam) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = amountParam{}
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		raw = num.String()
	}

	minor, err := money.Parse(raw)
	if err != nil {
		return err
	}
	*a = amountParam{Minor: minor, Set: true}
	return nil
}

func (a *amountParam) ptr() *int64 {
	if a == nil || !a.Set {
		return nil
	}
	v := a.Minor
	return &v
}
