package signer

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SignKey is the parameter carrying the signature. It is never part of the signed string.
const SignKey = "sign"

// Params maps request parameter names to their wire values.
type Params map[string]string

// Set stores a trimmed string value.
func (p Params) Set(key, value string) {
	p[key] = strings.TrimSpace(value)
}

// SetInt stores an integer in base 10.
func (p Params) SetInt(key string, value int64) {
	p[key] = strconv.FormatInt(value, 10)
}

// SetTime stores t rendered with layout.
func (p Params) SetTime(key string, t time.Time, layout string) {
	p[key] = t.Format(layout)
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Values converts the parameters, signature included, into url.Values.
func (p Params) Values() url.Values {
	values := make(url.Values, len(p))
	for k, v := range p {
		values.Set(k, v)
	}
	return values
}

// sortedKeys returns every key except SignKey in byte order.
func (p Params) sortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == SignKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
