package canon

import (
	"sort"
	"strings"
)

// QueryTerm is one decoded query-string key/value pair.
type QueryTerm struct {
	Key   string
	Value string
}

// ParseQuery splits a raw (possibly percent-encoded) query string on "&",
// each term on its first "=", decoding both sides. A term with no "="
// contributes an empty value.
func ParseQuery(raw string) []QueryTerm {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "&")
	terms := make([]QueryTerm, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if idx := strings.IndexByte(p, '='); idx >= 0 {
			terms = append(terms, QueryTerm{Key: Decode(p[:idx]), Value: Decode(p[idx+1:])})
		} else {
			terms = append(terms, QueryTerm{Key: Decode(p), Value: ""})
		}
	}
	return terms
}

// CanonicalQueryString re-encodes every term with the V4AuthSlash profile and
// emits them "key=value" joined by "&", sorted by encoded key (ties broken by
// encoded value), per spec.md §4.1.
func CanonicalQueryString(raw string) string {
	terms := ParseQuery(raw)
	if len(terms) == 0 {
		return ""
	}
	type enc struct{ k, v string }
	encoded := make([]enc, len(terms))
	for i, t := range terms {
		encoded[i] = enc{Encode(V4AuthSlash, t.Key), Encode(V4AuthSlash, t.Value)}
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].k != encoded[j].k {
			return encoded[i].k < encoded[j].k
		}
		return encoded[i].v < encoded[j].v
	})
	var sb strings.Builder
	for i, e := range encoded {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(e.k)
		sb.WriteByte('=')
		sb.WriteString(e.v)
	}
	return sb.String()
}

// v2WhitelistedParams is the fixed set of ~24 query-parameter tokens v2
// signing retains from the request's query string when building its
// canonical resource (spec.md §4.2). Everything else is dropped.
var v2WhitelistedParams = map[string]bool{
	"acl":                          true,
	"cors":                         true,
	"defaultObjectAcl":             true,
	"location":                     true,
	"logging":                      true,
	"partNumber":                   true,
	"policy":                       true,
	"requestPayment":               true,
	"torrent":                      true,
	"versioning":                   true,
	"versionId":                    true,
	"versions":                     true,
	"website":                      true,
	"uploads":                      true,
	"uploadId":                     true,
	"response-content-type":        true,
	"response-content-language":    true,
	"response-expires":             true,
	"response-cache-control":       true,
	"response-content-disposition": true,
	"response-content-encoding":    true,
	"delete":                       true,
	"lifecycle":                    true,
	"tagging":                      true,
	"restore":                      true,
	"notification":                 true,
}

// V2CanonicalResource builds the canonical resource string v2 signs: the
// canonicalized path followed by "?" and the sorted, "&"-joined subset of
// query parameters present in v2WhitelistedParams (each kept as "key=value"
// if it had a value, or bare "key" if it did not), omitting "?" entirely when
// no whitelisted parameter is present.
func V2CanonicalResource(path, rawQuery string) string {
	resource := EncodePath(Standard, path)
	terms := ParseQuery(rawQuery)
	if len(terms) == 0 {
		return resource
	}
	kept := make([]QueryTerm, 0, len(terms))
	for _, t := range terms {
		if v2WhitelistedParams[t.Key] {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return resource
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })
	var sb strings.Builder
	sb.WriteString(resource)
	sb.WriteByte('?')
	for i, t := range kept {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(t.Key)
		if t.Value != "" {
			sb.WriteByte('=')
			sb.WriteString(t.Value)
		}
	}
	return sb.String()
}
