package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the motion gate
const (
	// Raw accelerometer samples (input)
	TopicRawAccelerometer = "motiongate/raw/accelerometer/+"

	// GPS fixes reported by devices (input)
	TopicGPSFix = "motiongate/gps/fix/+"

	// Motion state per device (output, retained)
	TopicStateBase = "motiongate/state"

	// GPS acquisition requests (output)
	TopicGPSRequestBase = "motiongate/gps/request"
)

// RawAccelerometerTopic constructs the raw sample topic for a device
// Pattern: motiongate/raw/accelerometer/{device}
func RawAccelerometerTopic(device string) string {
	return fmt.Sprintf("motiongate/raw/accelerometer/%s", device)
}

// StateTopic constructs the retained motion state topic for a device
// Pattern: motiongate/state/{device}
func StateTopic(device string) string {
	return fmt.Sprintf("%s/%s", TopicStateBase, device)
}

// GPSRequestTopic constructs the GPS request topic for a device
// Pattern: motiongate/gps/request/{device}
func GPSRequestTopic(device string) string {
	return fmt.Sprintf("%s/%s", TopicGPSRequestBase, device)
}

// GPSFixTopic constructs the GPS fix topic for a device
// Pattern: motiongate/gps/fix/{device}
func GPSFixTopic(device string) string {
	return fmt.Sprintf("motiongate/gps/fix/%s", device)
}

// DeviceFromTopic returns the last topic level, which carries the device ID
// in every motion gate topic. Empty when the topic has no device level.
func DeviceFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}

// IsGPSFixTopic reports whether a topic carries a GPS fix
func IsGPSFixTopic(topic string) bool {
	return strings.HasPrefix(topic, "motiongate/gps/fix/")
}
