package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tableside/internal/lifecycle"
	"tableside/internal/models"
)

// normalizeOrderDocument coerces a loosely-typed order document into the
// fixed Order shape. Numbers stored as strings, lower-case statuses and
// missing item statuses are repaired; documents with no usable id, items or
// status are rejected with ErrMalformed.
func normalizeOrderDocument(raw bson.M) (models.Order, error) {
	id, err := documentID(raw["_id"])
	if err != nil {
		return models.Order{}, err
	}

	raw["tableId"] = coerceString(raw["tableId"])

	if n, ok := coerceInt(raw["orderNumber"]); ok {
		raw["orderNumber"] = n
	} else {
		raw["orderNumber"] = int64(0)
	}

	if f, ok := coerceFloat(raw["totalPrice"]); ok {
		raw["totalPrice"] = f
	} else {
		raw["totalPrice"] = 0.0
	}

	raw["helpRequested"] = coerceBool(raw["helpRequested"])

	if v, ok := coerceInt(raw["version"]); ok {
		raw["version"] = v
	} else {
		raw["version"] = int64(0)
	}

	switch ts := raw["timestamp"].(type) {
	case primitive.DateTime, time.Time:
	case int64:
		raw["timestamp"] = primitive.NewDateTimeFromTime(time.UnixMilli(ts))
	case float64:
		raw["timestamp"] = primitive.NewDateTimeFromTime(time.UnixMilli(int64(ts)))
	default:
		raw["timestamp"] = primitive.NewDateTimeFromTime(time.Time{})
	}

	status, ok := raw["status"].(string)
	if !ok {
		return models.Order{}, fmt.Errorf("%w: order %s has no status", ErrMalformed, id)
	}
	if _, err := models.ParseStatus(status); err != nil {
		return models.Order{}, fmt.Errorf("%w: order %s: %v", ErrMalformed, id, err)
	}

	items, err := normalizeItems(raw["items"])
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: order %s: %v", ErrMalformed, id, err)
	}
	raw["items"] = items

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Order{}, err
	}

	var o models.Order
	if err := bson.Unmarshal(data, &o); err != nil {
		return models.Order{}, fmt.Errorf("%w: order %s: %v", ErrMalformed, id, err)
	}
	o.ID = id
	o.TableID = models.NormalizeTableID(o.TableID)
	return lifecycle.NormalizeItems(o), nil
}

func normalizeItems(value interface{}) (bson.A, error) {
	var list []interface{}
	switch typed := value.(type) {
	case bson.A:
		list = typed
	case []interface{}:
		list = typed
	case nil:
		return nil, fmt.Errorf("items missing")
	default:
		return nil, fmt.Errorf("items has type %T", value)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("order has no items")
	}

	out := make(bson.A, 0, len(list))
	for i, entry := range list {
		item, ok := asMap(entry)
		if !ok {
			return nil, fmt.Errorf("item %d is not a document", i)
		}
		name := strings.TrimSpace(coerceString(item["name"]))
		if name == "" {
			return nil, fmt.Errorf("item %d has no name", i)
		}
		quantity, ok := coerceInt(item["quantity"])
		if !ok || quantity < 1 {
			quantity = 1
		}
		price, _ := coerceFloat(item["price"])

		status := ""
		if raw, ok := item["status"].(string); ok {
			if parsed, err := models.ParseStatus(raw); err == nil {
				status = string(parsed)
			}
		}
		out = append(out, bson.M{
			"name":     name,
			"quantity": quantity,
			"price":    price,
			"status":   status,
		})
	}
	return out, nil
}

func documentID(value interface{}) (string, error) {
	switch id := value.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		if strings.TrimSpace(id) != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: missing _id", ErrMalformed)
}

func asMap(value interface{}) (bson.M, bool) {
	switch typed := value.(type) {
	case bson.M:
		return typed, true
	case map[string]interface{}:
		return bson.M(typed), true
	case bson.D:
		m := make(bson.M, len(typed))
		for _, e := range typed {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func coerceString(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	}
	return ""
}

func coerceInt(value interface{}) (int64, bool) {
	switch typed := value.(type) {
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func coerceFloat(value interface{}) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int:
		return float64(typed), true
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(typed.String(), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	}
	return 0, false
}

func coerceBool(value interface{}) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(strings.TrimSpace(typed), "true")
	}
	return false
}
