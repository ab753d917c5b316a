package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Parameter names.
const (
	ParamFilter = "filter"
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamSort   = "sort"
	ParamOrder  = "order"
	ParamSearch = "q"
)

// ErrInvalidList is returned for malformed list parameters.
var ErrInvalidList = errors.New("invalid list query")

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// List describes one page of a filtered, sorted collection.
type List struct {
	Page    int
	Limit   int
	Sort    string
	Order   Order
	Search  string
	Filters map[string]any
}

// Values encodes l. Zero fields are omitted.
func (l List) Values() (url.Values, error) {
	v := url.Values{}
	if l.Page < 0 || l.Limit < 0 {
		return nil, fmt.Errorf("%w: negative page or limit", ErrInvalidList)
	}
	if l.Page > 0 {
		v.Set(ParamPage, strconv.Itoa(l.Page))
	}
	if l.Limit > 0 {
		v.Set(ParamLimit, strconv.Itoa(l.Limit))
	}
	if l.Sort != "" {
		v.Set(ParamSort, l.Sort)
		switch l.Order {
		case "":
		case Asc, Desc:
			v.Set(ParamOrder, string(l.Order))
		default:
			return nil, fmt.Errorf("%w: order %q", ErrInvalidList, l.Order)
		}
	}
	if s := strings.TrimSpace(l.Search); s != "" {
		v.Set(ParamSearch, s)
	}
	if len(l.Filters) > 0 {
		data, err := json.Marshal(l.Filters)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidList, err)
		}
		v.Set(ParamFilter, string(data))
	}
	return v, nil
}

// Encode returns the URL-encoded query string of l.
func (l List) Encode() (string, error) {
	v, err := l.Values()
	if err != nil {
		return "", err
	}
	return v.Encode(), nil
}

// Parse decodes list parameters. Filter numbers are kept as json.Number.
func Parse(v url.Values) (List, error) {
	var l List
	var err error

	if s := v.Get(ParamPage); s != "" {
		if l.Page, err = strconv.Atoi(s); err != nil || l.Page < 0 {
			return List{}, fmt.Errorf("%w: page %q", ErrInvalidList, s)
		}
	}
	if s := v.Get(ParamLimit); s != "" {
		if l.Limit, err = strconv.Atoi(s); err != nil || l.Limit < 0 {
			return List{}, fmt.Errorf("%w: limit %q", ErrInvalidList, s)
		}
	}
	l.Sort = v.Get(ParamSort)
	if o := Order(v.Get(ParamOrder)); o != "" {
		if o != Asc && o != Desc {
			return List{}, fmt.Errorf("%w: order %q", ErrInvalidList, o)
		}
		l.Order = o
	}
	l.Search = v.Get(ParamSearch)

	if raw := v.Get(ParamFilter); raw != "" {
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		filters := map[string]any{}
		if err := dec.Decode(&filters); err != nil {
			return List{}, fmt.Errorf("%w: filter: %v", ErrInvalidList, err)
		}
		l.Filters = filters
	}
	return l, nil
}
