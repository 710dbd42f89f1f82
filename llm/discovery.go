package llm

import (
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/sanchez314c/agent-chat/types"
	"github.com/tidwall/gjson"
)

// DiscoveryAuth selects how a listing call authenticates.
type DiscoveryAuth int

const (
	// DiscoveryAuthNone sends no credential.
	DiscoveryAuthNone DiscoveryAuth = iota
	// DiscoveryAuthBearer sends Authorization: Bearer <secret>.
	DiscoveryAuthBearer
	// DiscoveryAuthQuery appends the secret as the adapter's query parameter.
	DiscoveryAuthQuery
)

// Discovery describes a provider's model listing endpoint and how to turn
// its body into an ordered list of chat model ids.
type Discovery struct {
	URL  EndpointFunc
	Auth DiscoveryAuth
	// AuthRequired makes an absent credential an immediate fallback.
	AuthRequired bool
	// IDPath is a gjson path yielding the model ids, e.g. "data.#.id".
	IDPath string
	// TrimPrefix is removed from every extracted id.
	TrimPrefix string
	Filter     func(id string) bool
	// Less orders the filtered ids. Nil means lexical order.
	Less func(a, b string) bool
	// Static short-circuits the network with a curated list.
	Static []string
}

// ExtractIDs applies IDPath, TrimPrefix, Filter and Less to a listing body.
// Malformed bodies yield an empty slice.
func (d *Discovery) ExtractIDs(body []byte) []string {
	if !gjson.ValidBytes(body) {
		return nil
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range gjson.GetBytes(body, d.IDPath).Array() {
		id := strings.TrimPrefix(r.String(), d.TrimPrefix)
		if id == "" {
			continue
		}
		if d.Filter != nil && !d.Filter(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	less := d.Less
	if less == nil {
		less = func(a, b string) bool { return a < b }
	}
	sort.SliceStable(ids, func(i, j int) bool { return less(ids[i], ids[j]) })
	return ids
}

// ContainsAny returns a filter matching ids that contain any of subs,
// ignoring case.
func ContainsAny(subs ...string) func(string) bool {
	return func(id string) bool {
		lower := strings.ToLower(id)
		for _, s := range subs {
			if strings.Contains(lower, strings.ToLower(s)) {
				return true
			}
		}
		return false
	}
}

// PreferContaining returns an ordering that ranks ids by the first marker
// they contain, then lexically.
func PreferContaining(markers ...string) func(a, b string) bool {
	rank := func(id string) int {
		for i, m := range markers {
			if strings.Contains(id, m) {
				return i
			}
		}
		return len(markers)
	}
	return func(a, b string) bool {
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra < rb
		}
		return a < b
	}
}

// LocalEndpoint builds http://host:port/path with defaults for a
// self-hosted server.
func LocalEndpoint(defaultPort int, path string) EndpointFunc {
	return func(_ string, rt *types.LocalServerConfig) string {
		host, port := "localhost", defaultPort
		if rt != nil {
			if rt.Host != "" {
				host = rt.Host
			}
			if rt.Port > 0 {
				port = rt.Port
			}
		}
		return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + path
	}
}
