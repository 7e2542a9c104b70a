package models

// Reservation is the authenticated session one card holds against the
// comedor backend: an opaque path/token pair plus the cookies the backend
// issued. One row per card code.
type Reservation struct {
	Code    string   `json:"code"`
	Path    string   `json:"path,omitempty"`
	Token   string   `json:"token,omitempty"`
	Cookies []Cookie `json:"cookies,omitempty"`
}

// Cookie lives and dies with the reservation that owns it; ownership is
// carried by the storage key, not by a back-pointer.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Cookie lookup by name, empty string when absent.
func (r *Reservation) CookieValue(name string) string {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Merge applies a gateway response onto the reservation. Non-empty
// path/token overwrite the stored value; empty ones keep it. A response
// that carries cookies replaces the whole set, one that carries none
// leaves the previous set in place.
func (r *Reservation) Merge(path, token string, cookies []Cookie) {
	if path != "" {
		r.Path = path
	}
	if token != "" {
		r.Token = token
	}
	if len(cookies) > 0 {
		r.Cookies = cookies
	}
}

// Clone returns a deep copy, cookie slice included.
func (r *Reservation) Clone() *Reservation {
	cp := *r
	if r.Cookies != nil {
		cp.Cookies = make([]Cookie, len(r.Cookies))
		copy(cp.Cookies, r.Cookies)
	}
	return &cp
}
