package stomp

const (
	HeaderAcceptVersion = "accept-version"
	HeaderContentType   = "content-type"
	HeaderDestination   = "destination"
	HeaderFile          = "file"
	HeaderHeartBeat     = "heart-beat"
	HeaderHost          = "host"
	HeaderID            = "id"
	HeaderLogin         = "login"
	HeaderMessage       = "message"
	HeaderMessageID     = "message-id"
	HeaderPasscode      = "passcode"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
	HeaderServer        = "server"
	HeaderSession       = "session"
	HeaderSubscription  = "subscription"
	HeaderVersion       = "version"
)

// Header is a single key:value pair.
type Header struct {
	Key   string
	Value string
}

// Headers keeps frame headers in insertion order with unique keys.
type Headers struct {
	entries []Header
}

// NewHeaders builds Headers from alternating key, value arguments.
func NewHeaders(kv ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// Get returns the value of key and whether it is present.
func (h Headers) Get(key string) (string, bool) {
	for _, e := range h.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Value returns the value of key or the empty string.
func (h Headers) Value(key string) string {
	v, _ := h.Get(key)
	return v
}

// Set overwrites the value of an existing key in place or appends a new one.
func (h *Headers) Set(key, value string) {
	for i := range h.entries {
		if h.entries[i].Key == key {
			h.entries[i].Value = value
			return
		}
	}
	h.entries = append(h.entries, Header{Key: key, Value: value})
}

func (h *Headers) Del(key string) {
	for i := range h.entries {
		if h.entries[i].Key == key {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return
		}
	}
}

func (h Headers) Len() int {
	return len(h.entries)
}

// All returns the headers in order. The slice must not be modified.
func (h Headers) All() []Header {
	return h.entries
}

// Clone returns a copy that shares no storage with h.
func (h Headers) Clone() Headers {
	if len(h.entries) == 0 {
		return Headers{}
	}
	entries := make([]Header, len(h.entries))
	copy(entries, h.entries)
	return Headers{entries: entries}
}

// Map returns the headers as a plain map.
func (h Headers) Map() map[string]string {
	m := make(map[string]string, len(h.entries))
	for _, e := range h.entries {
		m[e.Key] = e.Value
	}
	return m
}
