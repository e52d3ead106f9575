package models

import (
	"fmt"
	"strings"
)

// KeyPrefix distinguishes identity kinds so a user id can never share a
// bucket with an IP address.
type KeyPrefix string

const (
	KeyPrefixIP   KeyPrefix = "ip"
	KeyPrefixUser KeyPrefix = "user"
)

// BucketKey identifies one fixed-window counter.
type BucketKey struct {
	class      LimitClass
	prefix     KeyPrefix
	identifier string
}

// NewBucketKey creates a key for the given class and client identity.
func NewBucketKey(class LimitClass, prefix KeyPrefix, identifier string) BucketKey {
	return BucketKey{
		class:      class,
		prefix:     prefix,
		identifier: sanitizeKeySegment(identifier),
	}
}

func (k BucketKey) Class() LimitClass {
	return k.class
}

// String returns the storage key, e.g. "createPoll:ip:203.0.113.7".
func (k BucketKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.class, k.prefix, k.identifier)
}

// sanitizeKeySegment escapes delimiter characters so an identifier holding
// ':' cannot address a neighbouring bucket. '_' is escaped first so the
// mapping stays injective.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}

// ClientIdentity is who a request is counted against: the authenticated
// user when known, else the resolved client address.
type ClientIdentity struct {
	Kind  KeyPrefix
	Value string
}

func UserIdentity(userID string) ClientIdentity {
	return ClientIdentity{Kind: KeyPrefixUser, Value: userID}
}

func IPIdentity(ip string) ClientIdentity {
	return ClientIdentity{Kind: KeyPrefixIP, Value: ip}
}

func (c ClientIdentity) String() string {
	return string(c.Kind) + ":" + c.Value
}
