package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type MovementFilter struct {
	ProductID    int64
	MovementType MovementType
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

// Values encodes the non-zero fields as query parameters.
func (f MovementFilter) Values() url.Values {
	q := url.Values{}
	if f.ProductID > 0 {
		q.Set("product_id", strconv.FormatInt(f.ProductID, 10))
	}
	if f.MovementType != "" {
		q.Set("movement_type", string(f.MovementType))
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

func ParseMovementFilter(q url.Values) (MovementFilter, error) {
	var (
		f   MovementFilter
		err error
	)
	if v := q.Get("product_id"); v != "" {
		if f.ProductID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, fmt.Errorf("invalid product_id: %w", err)
		}
	}
	if v := q.Get("movement_type"); v != "" {
		f.MovementType = MovementType(v)
		if !f.MovementType.Valid() {
			return f, fmt.Errorf("invalid movement_type: %s", v)
		}
	}
	if v := q.Get("from"); v != "" {
		if f.From, err = time.Parse(time.RFC3339, v); err != nil {
			return f, fmt.Errorf("invalid from: %w", err)
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, err = time.Parse(time.RFC3339, v); err != nil {
			return f, fmt.Errorf("invalid to: %w", err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("invalid limit: %w", err)
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("invalid offset: %w", err)
		}
	}
	return f, nil
}
