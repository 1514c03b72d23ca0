package redis

import "fmt"

func principalKey(keyPrefix, principalID string) string {
	return fmt.Sprintf("%vprincipal:%v", keyPrefix, principalID)
}

// membershipsKey returns the key of the SET holding the group keys a
// principal is a member of.
func membershipsKey(keyPrefix, principalID string) string {
	return fmt.Sprintf("%vmemberships:%v", keyPrefix, principalID)
}

func groupRecordKey(keyPrefix, key string) string {
	return fmt.Sprintf("%vgroup:%v", keyPrefix, key)
}

// groupMembersKey returns the key of the reverse SET holding the members of a
// group. Kept so deleting a principal can drop it from every group without a
// scan.
func groupMembersKey(keyPrefix, key string) string {
	return fmt.Sprintf("%vgroup-members:%v", keyPrefix, key)
}
