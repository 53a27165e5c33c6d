package sesslib

import "net/http"

// Headers represents an ordered list of request headers.
type Headers []Header

// Get returns the index of the header with the given key.
// If the header is not found, the second return value is false.
func (h Headers) Get(key string) (index int, have bool) {
	for i, x := range h {
		if x.Key != key {
			continue
		}
		index = i
		have = true
		break
	}
	return
}

// Value returns the value of the header with the given key, or the
// empty string when absent.
func (h Headers) Value(key string) string {
	i, ok := h.Get(key)
	if !ok {
		return ""
	}
	return h[i].Value
}

// InitOrUpdate sets the header only when the key is not already present.
func (h *Headers) InitOrUpdate(key, value string) {
	_, ok := h.Get(key)
	if ok {
		return
	}
	*h = append(*h, Header{key, value})
}

// Update sets the header, replacing an existing value for the same key.
func (h *Headers) Update(key, value string) {
	i, ok := h.Get(key)
	if ok {
		(*h)[i] = Header{key, value}
		return
	}
	*h = append(*h, Header{key, value})
}

// Delete removes the header with the given key, if present.
func (h *Headers) Delete(key string) {
	i, ok := h.Get(key)
	if !ok {
		return
	}
	*h = append((*h)[:i], (*h)[i+1:]...)
}

// Set sets all headers in the given http.Header.
func (h Headers) Set(header http.Header) {
	for _, x := range h {
		header.Set(x.Key, x.Value)
	}
}

// Clone returns a copy of the header list.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Header represents a key-value pair.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
