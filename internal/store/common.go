package store

const (
	ErrFailedBatchCommit = "failed to commit batch: %v"
)

// Prefix constants for all store types
const (
	prefixBalance byte = iota + 1
	prefixStorage
	prefixNonce
	prefixAdminRules
	prefixMeta
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixBalance:
		return "balance"
	case prefixStorage:
		return "storage"
	case prefixNonce:
		return "nonce"
	case prefixAdminRules:
		return "adminRules"
	case prefixMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and the parts that follow it
func makeKey(prefix byte, parts ...[]byte) []byte {
	size := 1
	for _, p := range parts {
		size += len(p)
	}
	key := make([]byte, 1, size)
	key[0] = prefix
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// prefixEnd returns the smallest key greater than every key starting with prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
