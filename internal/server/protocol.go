package server

// Line-delimited JSON protocol over a Unix domain socket.
// Each request gets exactly one response on the same connection.

const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpKeys   = "keys"
	OpLen    = "len"
)

type Request struct {
	Op         string `json:"op"`
	Key        string `json:"key,omitempty"`
	Value      []byte `json:"value,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

// Response reports a miss as OK with Found=false; OK=false is reserved for
// malformed or unknown requests.
type Response struct {
	OK    bool     `json:"ok"`
	Found bool     `json:"found,omitempty"`
	Value []byte   `json:"value,omitempty"`
	Keys  []string `json:"keys,omitempty"`
	Len   int      `json:"len,omitempty"`
	Error string   `json:"error,omitempty"`
}
