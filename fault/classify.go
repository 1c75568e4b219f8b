package fault

import (
	"errors"
	"strconv"
	"strings"

	"github.com/abhissng/cortex/core"
)

// Parse classifies a failure returned by the remote boundary for the
// given request kind. It is a pure mapping: no side effects, no I/O. A
// nil input yields nil. Failures that are not structured boundary
// errors, or whose status cannot carry a recoverable shape, classify as
// FatalFailure.
func Parse[T any](err error, kind core.RequestKind) *Error[T] {
	if err == nil {
		return nil
	}

	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		return Fatal[T](err)
	}

	if apiErr.Status >= 500 || !classifiableStatus(apiErr.Status) {
		return Fatal[T](apiErr).WithStatus(apiErr.Status)
	}

	var classified *Error[T]
	switch kind {
	case core.CreateAssets:
		classified = parseAssets[T](apiErr)
	case core.CreateTimeSeries:
		classified = parseTimeSeries[T](apiErr)
	case core.CreateEvents:
		classified = parseEvents[T](apiErr)
	case core.UpsertInstances:
		classified = parseInstances[T](apiErr)
	}

	if classified == nil {
		// Unmatched 400s fall through to a bare fatal carrying the
		// original message.
		classified = Fatal[T](apiErr)
	}
	return classified.WithStatus(apiErr.Status).WithCause(apiErr)
}

func classifiableStatus(status int) bool {
	return status == 400 || status == 409 || status == 422
}

func parseAssets[T any](e *core.APIError) *Error[T] {
	if values := core.ExtractField(e.Duplicated, fieldExternalID); len(values) > 0 {
		return New[T](ItemExists, e.Message).
			WithResource(core.ResourceExternalID).
			WithValues(values...)
	}

	switch {
	case strings.HasPrefix(e.Message, PrefixUnknownParentExternalID):
		// The boundary does not report which parents were unknown for
		// this shape; the value set must be completed by a follow-up
		// lookup before it can filter a batch.
		return New[T](ItemMissing, e.Message).
			WithResource(core.ResourceParentExternalID).
			MarkIncomplete()
	case strings.HasPrefix(e.Message, PrefixParentIDsNotFound):
		values := core.ExtractField(e.Missing, fieldID)
		if len(values) == 0 {
			values = idListFromMessage(e.Message)
		}
		return New[T](ItemMissing, e.Message).
			WithResource(core.ResourceParentID).
			WithValues(values...)
	case strings.HasPrefix(e.Message, PrefixInvalidDataSetIDs):
		return dataSetError[T](e)
	}

	if values := core.ExtractField(e.Missing, fieldID); len(values) > 0 {
		return New[T](ItemMissing, e.Message).
			WithResource(core.ResourceInternalID).
			WithValues(values...)
	}
	return nil
}

func parseTimeSeries[T any](e *core.APIError) *Error[T] {
	if values := core.ExtractField(e.Duplicated, fieldExternalID); len(values) > 0 {
		return New[T](ItemExists, e.Message).
			WithResource(core.ResourceExternalID).
			WithValues(values...)
	}
	if values := core.ExtractField(e.Duplicated, fieldLegacyName); len(values) > 0 {
		return New[T](ItemExists, e.Message).
			WithResource(core.ResourceLegacyName).
			WithValues(values...)
	}

	switch {
	case strings.HasPrefix(e.Message, PrefixInvalidDataSetIDs):
		return dataSetError[T](e)
	case strings.HasPrefix(e.Message, PrefixAssetIDsNotFound):
		values := core.ExtractField(e.Missing, fieldID)
		if len(values) == 0 {
			values = idListFromMessage(e.Message)
		}
		return New[T](ItemMissing, e.Message).
			WithResource(core.ResourceAssetID).
			WithValues(values...)
	}

	if values := core.ExtractField(e.Missing, fieldID); len(values) > 0 {
		return New[T](ItemMissing, e.Message).
			WithResource(core.ResourceAssetID).
			WithValues(values...)
	}
	return nil
}

func parseEvents[T any](e *core.APIError) *Error[T] {
	if values := core.ExtractField(e.Duplicated, fieldExternalID); len(values) > 0 {
		return New[T](ItemExists, e.Message).
			WithResource(core.ResourceExternalID).
			WithValues(values...)
	}

	switch {
	case strings.HasPrefix(e.Message, PrefixAssetIDsNotFound):
		values := core.ExtractField(e.Missing, fieldID)
		if len(values) == 0 {
			values = idListFromMessage(e.Message)
		}
		return New[T](ItemMissing, e.Message).
			WithResource(core.ResourceAssetID).
			WithValues(values...)
	case strings.HasPrefix(e.Message, PrefixInvalidDataSetIDs):
		return dataSetError[T](e)
	}
	return nil
}

func parseInstances[T any](e *core.APIError) *Error[T] {
	if values := core.ExtractField(e.Duplicated, fieldExternalID); len(values) > 0 {
		return New[T](ItemExists, e.Message).
			WithResource(core.ResourceExternalID).
			WithValues(values...)
	}
	if values := core.ExtractField(e.Missing, fieldExternalID); len(values) > 0 {
		return New[T](ItemMissing, e.Message).
			WithResource(core.ResourceExternalID).
			WithValues(values...)
	}
	return nil
}

func dataSetError[T any](e *core.APIError) *Error[T] {
	values := core.ExtractField(e.Missing, fieldID)
	if len(values) == 0 {
		values = idListFromMessage(e.Message)
	}
	return New[T](ItemMissing, e.Message).
		WithResource(core.ResourceDataSetID).
		WithValues(values...)
}

// idListFromMessage recovers numeric identities from a message of the
// form "Some prefix: 1, 2, 3".
func idListFromMessage(message string) []core.Value {
	_, list, ok := strings.Cut(message, ":")
	if !ok {
		return nil
	}
	var values []core.Value
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "."))
		if part == "" {
			continue
		}
		if n, err := strconv.ParseInt(part, 10, 64); err == nil {
			values = append(values, core.IntValue(n))
		}
	}
	return values
}
