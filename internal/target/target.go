// Package target describes the closed set of entities an engagement or a
// notification can point at.
package target

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the entity types a Ref can name.
type Kind string

// Known target kinds. KindNone marks an event that has no target entity.
const (
	KindNone    Kind = ""
	KindPost    Kind = "post"
	KindComment Kind = "comment"
	KindUser    Kind = "user"
)

// ErrUnknownKind indicates the supplied kind is outside the closed set.
var ErrUnknownKind = errors.New("target: unknown kind")

var kindsByName = map[string]Kind{
	string(KindPost):    KindPost,
	string(KindComment): KindComment,
	string(KindUser):    KindUser,
}

// Ref identifies a single entity by kind and primary key.
type Ref struct {
	Kind Kind
	ID   uint
}

// None returns the empty reference used by session events.
func None() Ref { return Ref{} }

// Post references a post.
func Post(id uint) Ref { return Ref{Kind: KindPost, ID: id} }

// Comment references a comment or reply.
func Comment(id uint) Ref { return Ref{Kind: KindComment, ID: id} }

// User references a user.
func User(id uint) Ref { return Ref{Kind: KindUser, ID: id} }

// IsNone reports whether the reference carries no entity.
func (r Ref) IsNone() bool {
	return r.Kind == KindNone
}

// String renders the reference as kind:id.
func (r Ref) String() string {
	if r.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ParseKind resolves a stored or user-supplied kind name.
func ParseKind(raw string) (Kind, error) {
	kind, ok := kindsByName[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return KindNone, fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return kind, nil
}

// Parse builds a Ref from a stored kind and id pair. An empty kind yields None.
func Parse(kind string, id uint) (Ref, error) {
	if strings.TrimSpace(kind) == "" {
		return None(), nil
	}
	resolved, err := ParseKind(kind)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Kind: resolved, ID: id}, nil
}
