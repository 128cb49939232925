package identity

import (
	"slices"
	"strings"
)

// AllGroup is the group name granting read and write on every scope.
const AllGroup = "ALL"

// Permissions answers access questions for one user.
//
// A group's permission string is a whitespace separated list mixing the READ
// and WRITE qualifiers with database.schema scopes. The qualifiers are paired
// crosswise with the access they grant: CanRead needs WRITE next to the scope
// and CanWrite needs READ. Existing group data relies on this pairing, so a
// group meant to be read-only must be written "WRITE db.schema".
type Permissions struct {
	User   string
	groups []string
	perms  map[string]string
}

// NewPermissions binds a user to its resolved groups. Groups missing from
// perms are skipped when evaluating.
func NewPermissions(user string, groups []string, perms map[string]string) *Permissions {
	return &Permissions{User: user, groups: slices.Clone(groups), perms: perms}
}

// Groups returns the user's group names.
func (p *Permissions) Groups() []string {
	return slices.Clone(p.groups)
}

// CanRead reports whether the user may read database.schema.
func (p *Permissions) CanRead(database, schema string) bool {
	return p.allows(database, schema, "WRITE")
}

// CanWrite reports whether the user may write database.schema.
func (p *Permissions) CanWrite(database, schema string) bool {
	return p.allows(database, schema, "READ")
}

func (p *Permissions) allows(database, schema, qualifier string) bool {
	scope := database + "." + schema
	for _, g := range p.groups {
		if g == AllGroup {
			return true
		}
		perm, ok := p.perms[g]
		if !ok {
			continue
		}
		tokens := strings.Fields(perm)
		if slices.Contains(tokens, scope) && slices.Contains(tokens, qualifier) {
			return true
		}
	}
	return false
}
