package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/events"
)

var packNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidatePackName accepts the folder names packs are published under.
func ValidatePackName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: pack name cannot be empty", apperrors.ErrInvalid)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: pack name must be 255 characters or less", apperrors.ErrInvalid)
	}
	if !packNameRegex.MatchString(name) {
		return fmt.Errorf("%w: pack name %q has invalid characters", apperrors.ErrInvalid, name)
	}
	return nil
}

func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", apperrors.ErrInvalid)
	}
	if len(key) > 512 {
		return fmt.Errorf("%w: key must be 512 characters or less", apperrors.ErrInvalid)
	}
	return nil
}

func ParseQueryParams(r *http.Request) (events.EventFilters, error) {
	return ParseEventQueryParams(r.URL.Query())
}

func ParseEventQueryParams(queryParams map[string][]string) (events.EventFilters, error) {
	filters := events.EventFilters{}

	if run := getFirstQueryParam(queryParams, "run"); run != "" {
		if err := ValidateKey(run); err != nil {
			return filters, fmt.Errorf("%w: invalid run parameter: %w", apperrors.ErrInvalid, err)
		}
		filters.RunID = run
	}

	if name := getFirstQueryParam(queryParams, "pack"); name != "" {
		if err := ValidatePackName(name); err != nil {
			return filters, err
		}
		filters.Pack = name
	}

	if typeStr := getFirstQueryParam(queryParams, "type"); typeStr != "" {
		eventType := events.EventType(typeStr)
		switch eventType {
		case events.EventTypeError, events.EventTypeSuccess, events.EventTypeInfo,
			events.EventTypeWarning, events.EventTypeSkip:
		default:
			return filters, fmt.Errorf("%w: invalid event type: %s (must be one of: error, success, info, warning, skip)", apperrors.ErrInvalid, typeStr)
		}
		filters.Type = eventType
	}

	if sinceStr := getFirstQueryParam(queryParams, "since"); sinceStr != "" {
		t, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return filters, fmt.Errorf("%w: invalid since parameter format (use RFC3339): %w", apperrors.ErrInvalid, err)
		}
		filters.Since = t
	}

	if untilStr := getFirstQueryParam(queryParams, "until"); untilStr != "" {
		t, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return filters, fmt.Errorf("%w: invalid until parameter format (use RFC3339): %w", apperrors.ErrInvalid, err)
		}
		filters.Until = t
	}

	limit, err := parseLimit(getFirstQueryParam(queryParams, "limit"), defaultEventLimit)
	if err != nil {
		return filters, err
	}
	filters.Limit = limit

	if offsetStr := getFirstQueryParam(queryParams, "offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filters, fmt.Errorf("%w: invalid offset parameter: must be a non-negative integer", apperrors.ErrInvalid)
		}
		filters.Offset = offset
	}

	return filters, nil
}

func parseLimit(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", apperrors.ErrInvalid)
	}
	if limit > maxLimit {
		return 0, fmt.Errorf("%w: limit cannot exceed %d", apperrors.ErrInvalid, maxLimit)
	}
	return limit, nil
}

func getFirstQueryParam(queryParams map[string][]string, key string) string {
	if values, ok := queryParams[key]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}
