package redis

import "fmt"

// Key construction helpers for per-device motion data

// MotionStateKey returns the key for the latest motion state (hash)
// Pattern: motion:state:{device}
func MotionStateKey(device string) string {
	return fmt.Sprintf("motion:state:%s", device)
}

// MotionHistoryKey returns the key for recent motion states (sorted set, scored by timestamp)
// Pattern: motion:history:{device}
func MotionHistoryKey(device string) string {
	return fmt.Sprintf("motion:history:%s", device)
}

// MotionTransitionsKey returns the key for recent moving/still transitions (list, newest first)
// Pattern: motion:transitions:{device}
func MotionTransitionsKey(device string) string {
	return fmt.Sprintf("motion:transitions:%s", device)
}
