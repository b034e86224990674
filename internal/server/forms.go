package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"universes/internal/service"
)

const maxFormMemory = 1 << 20

// deadlineLayout matches a datetime-local control.
const deadlineLayout = "2006-01-02T15:04"

func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "multipart/form-data" || ct == "application/x-www-form-urlencoded"
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// parseForm reads multipart and urlencoded bodies. It is safe to call more
// than once.
func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormMemory))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// form is a parsed request body with helpers for the field conventions the
// card forms use: list fields may carry a [] suffix and optional fields only
// count when present.
type form struct {
	r    *http.Request
	verr *service.ValidationError
}

func readForm(r *http.Request) (*form, error) {
	if err := parseForm(r); err != nil {
		return nil, err
	}
	return &form{r: r, verr: &service.ValidationError{}}, nil
}

func (f *form) has(key string) bool {
	_, ok := f.r.Form[key]
	return ok
}

func (f *form) str(key string) string {
	return f.r.Form.Get(key)
}

func (f *form) list(key string) []string {
	if vals, ok := f.r.Form[key+"[]"]; ok {
		return vals
	}
	return f.r.Form[key]
}

func (f *form) uints(key string) []uint {
	raw := f.list(key)
	out := make([]uint, 0, len(raw))
	for _, v := range raw {
		if strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			f.verr.Add(key, fmt.Sprintf("%q is not a valid id.", v))
			continue
		}
		out = append(out, uint(n))
	}
	return out
}

func (f *form) integer(key string) int {
	raw := strings.TrimSpace(f.str(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f.verr.Add(key, "Must be a whole number.")
	}
	return n
}

func (f *form) optInt(key string) *int {
	raw := strings.TrimSpace(f.str(key))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f.verr.Add(key, "Must be a whole number.")
		return nil
	}
	return &n
}

func (f *form) optUint(key string) *uint {
	raw := strings.TrimSpace(f.str(key))
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		f.verr.Add(key, fmt.Sprintf("%q is not a valid id.", raw))
		return nil
	}
	id := uint(n)
	return &id
}

func (f *form) optString(key string) *string {
	if !f.has(key) {
		return nil
	}
	v := f.str(key)
	return &v
}

// timeField parses a present deadline. Empty clears it.
func (f *form) timeField(key string, loc *time.Location) service.Field[time.Time] {
	if !f.has(key) {
		return service.Field[time.Time]{}
	}
	raw := strings.TrimSpace(f.str(key))
	if raw == "" {
		return service.Clear[time.Time]()
	}
	if t, err := time.ParseInLocation(deadlineLayout, raw, loc); err == nil {
		return service.Set(t)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return service.Set(t)
	}
	f.verr.Add(key, "Must be a date and time.")
	return service.Field[time.Time]{}
}

func (f *form) uintField(key string) service.Field[uint] {
	if !f.has(key) {
		return service.Field[uint]{}
	}
	if v := f.optUint(key); v != nil {
		return service.Set(*v)
	}
	return service.Clear[uint]()
}

func (f *form) intField(key string) service.Field[int] {
	if !f.has(key) {
		return service.Field[int]{}
	}
	if v := f.optInt(key); v != nil {
		return service.Set(*v)
	}
	return service.Clear[int]()
}

func (f *form) err() error {
	if len(f.verr.Fields) == 0 {
		return nil
	}
	return f.verr
}

func pathID(r *http.Request) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(n), nil
}
