package backend

import (
	"bytes"
	"encoding/json"

	"github.com/nhle/shipdesk-notify/internal/model"
)

// ListShape identifies which wire shape a list response arrived in.
type ListShape int

const (
	ShapeUnknown ListShape = iota
	ShapeArray
	ShapeNotificationsKey
	ShapeDataKey
	ShapeItemsKey
	ShapeResultsKey
	ShapeNestedData
)

func (s ListShape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeNotificationsKey:
		return "notifications"
	case ShapeDataKey:
		return "data"
	case ShapeItemsKey:
		return "items"
	case ShapeResultsKey:
		return "results"
	case ShapeNestedData:
		return "data.notifications"
	default:
		return "unknown"
	}
}

// listKeys is the order in which wrapper keys are tried.
var listKeys = []struct {
	key   string
	shape ListShape
}{
	{"notifications", ShapeNotificationsKey},
	{"data", ShapeDataKey},
	{"items", ShapeItemsKey},
	{"results", ShapeResultsKey},
}

// NormalizeList decodes a "list mine" response body into a flat slice.
// Shapes are tried in a fixed order: a bare array, then the wrapper keys
// in listKeys, then {"data": {"notifications": [...]}}. Anything else,
// including invalid JSON, yields an empty, non-nil slice.
func NormalizeList(body []byte) ([]model.Notification, ListShape) {
	list, shape := decodeList(body)
	if list == nil {
		list = []model.Notification{}
	}
	return list, shape
}

func decodeList(body []byte) ([]model.Notification, ListShape) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ShapeUnknown
	}

	if trimmed[0] == '[' {
		var list []model.Notification
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, ShapeUnknown
		}
		return list, ShapeArray
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, ShapeUnknown
	}

	for _, k := range listKeys {
		raw, ok := obj[k.key]
		if !ok {
			continue
		}
		var list []model.Notification
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, k.shape
		}
	}

	if raw, ok := obj["data"]; ok {
		var inner struct {
			Notifications []model.Notification `json:"notifications"`
		}
		if err := json.Unmarshal(raw, &inner); err == nil && inner.Notifications != nil {
			return inner.Notifications, ShapeNestedData
		}
	}

	return nil, ShapeUnknown
}
