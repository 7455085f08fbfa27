/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// roster maps stable client tokens to display names, first come first
// served. A token keeps its name for the lifetime of the session, so a
// refreshed browser reclaims its slot, while two distinct clients can
// never hold the same name.
type roster struct {
	byToken map[string]string
	byName  map[string]string
	order   []string // names in join order, used for ranking tie-breaks
}

func newRoster() *roster {
	return &roster{
		byToken: make(map[string]string),
		byName:  make(map[string]string),
	}
}

// join binds token to name. Rejoining with the same pair succeeds and
// reports created=false so callers can skip the roster broadcast.
func (r *roster) join(token, name string) (created bool, err error) {
	if bound, ok := r.byToken[token]; ok {
		if bound == name {
			return false, nil
		}

		return false, rejectf(RejectIdentityMismatch, "this client is already playing as %q", bound)
	}

	if _, taken := r.byName[name]; taken {
		return false, rejectf(RejectNameConflict, "the name %q is already taken", name)
	}

	r.byToken[token] = name
	r.byName[name] = token
	r.order = append(r.order, name)

	return true, nil
}

// resolve returns the name bound to token, if any.
func (r *roster) resolve(token string) (string, bool) {
	name, ok := r.byToken[token]
	return name, ok
}

// names returns the roster in join order. The returned slice is a copy.
func (r *roster) names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// bound reports whether name belongs to any registered identity.
func (r *roster) bound(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *roster) size() int {
	return len(r.order)
}
