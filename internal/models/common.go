package models

// Page is the envelope of every paginated listing endpoint.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether the server advertised another page.
func (p Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}
