// Package namespace derives the storage keys for one estimate scope.
//
// Every persisted key lives under "ee.<scope>." where scope is either
// "estimate:<id>" for a saved estimate or "fast" for the unsaved session.
// Resolve is pure and may be called before anything else is initialised.
package namespace

import (
	"strings"

	"github.com/julianstephens/estimator/internal/constants"
)

// Keys are the resolved storage keys of one scope.
type Keys struct {
	Scope       string
	Prefix      string
	GridKey     string
	TotalsKey   string
	DocumentKey string
	estimateID  string
}

var idEscaper = strings.NewReplacer("%", "%25", ".", "%2E")

// Resolve derives the keys for estimateID. An empty or blank id resolves to
// the fast scope.
func Resolve(estimateID string) Keys {
	id := strings.TrimSpace(estimateID)
	if id == "" {
		return build(constants.FastScope, "")
	}
	return build(constants.EstimateScope+":"+idEscaper.Replace(id), id)
}

// FastKeys returns the keys of the transient scope.
func FastKeys() Keys {
	return Resolve("")
}

func build(scope, id string) Keys {
	prefix := constants.KeyRoot + "." + scope + "."
	return Keys{
		Scope:       scope,
		Prefix:      prefix,
		GridKey:     prefix + constants.GridKeySuffix,
		TotalsKey:   prefix + constants.TotalsKeySuffix,
		DocumentKey: prefix + constants.DocumentKeySuffix,
		estimateID:  id,
	}
}

// IsFast reports whether the keys belong to the transient scope.
func (k Keys) IsFast() bool {
	return k.estimateID == ""
}

// EstimateID returns the unescaped estimate id, or "" for the fast scope.
func (k Keys) EstimateID() string {
	return k.estimateID
}

// All lists the three data keys of the scope.
func (k Keys) All() []string {
	return []string{k.GridKey, k.TotalsKey, k.DocumentKey}
}

// Owns reports whether key belongs to this scope.
func (k Keys) Owns(key string) bool {
	return strings.HasPrefix(key, k.Prefix)
}

// LegacyKeys are unscoped keys written by older builds. They may be removed
// but never written.
var LegacyKeys = []string{
	constants.DocumentKeySuffix,
	constants.GridKeySuffix,
	constants.TotalsKeySuffix,
}

// IsScoped reports whether key lives inside some estimate or fast scope.
func IsScoped(key string) bool {
	fast := constants.KeyRoot + "." + constants.FastScope + "."
	est := constants.KeyRoot + "." + constants.EstimateScope + ":"
	if strings.HasPrefix(key, fast) {
		return len(key) > len(fast)
	}
	if strings.HasPrefix(key, est) {
		rest := key[len(est):]
		dot := strings.IndexByte(rest, '.')
		return dot > 0 && dot < len(rest)-1
	}
	return false
}

// IsWritable reports whether the storage layer may write key: scoped data
// keys and the session flag only.
func IsWritable(key string) bool {
	return IsScoped(key) || key == constants.SessionFlagKey
}

var idUnescaper = strings.NewReplacer("%2E", ".", "%25", "%")

// Parse returns the scope keys that key belongs to.
func Parse(key string) (Keys, bool) {
	if !IsScoped(key) {
		return Keys{}, false
	}
	fast := constants.KeyRoot + "." + constants.FastScope + "."
	if strings.HasPrefix(key, fast) {
		return FastKeys(), true
	}
	rest := key[len(constants.KeyRoot+"."+constants.EstimateScope+":"):]
	escaped := rest[:strings.IndexByte(rest, '.')]
	return Resolve(idUnescaper.Replace(escaped)), true
}

// Scopes groups stored keys by scope, in first-seen order.
func Scopes(keys []string) []Keys {
	seen := make(map[string]bool)
	var out []Keys
	for _, key := range keys {
		k, ok := Parse(key)
		if !ok || seen[k.Scope] {
			continue
		}
		seen[k.Scope] = true
		out = append(out, k)
	}
	return out
}
