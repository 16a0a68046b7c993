package types

import "time"

// Settings are the runtime-tunable bot options. A stored settings document
// overrides these field by field; missing fields keep their env defaults.
type Settings struct {
	ProtectContent           bool   `json:"protectContent"`
	AutoDeleteTime           int    `json:"autoDeleteTime"`
	AutoDeleteMessage        string `json:"autoDeleteMessage"`
	AutoDelSuccessMsg        string `json:"autoDelSuccessMsg"`
	StartMessage             string `json:"startMessage"`
	CustomCaption            string `json:"customCaption"`
	AdEnabled                bool   `json:"adEnabled"`
	AdLink                   string `json:"adLink"`
	AdWaitTime               int    `json:"adWaitTime"`
	ForceSubscription        bool   `json:"forceSubscription"`
	ForceSubscriptionChannel string `json:"forceSubscriptionChannel"`
}

func (s Settings) AutoDelete() time.Duration {
	if s.AutoDeleteTime <= 0 {
		return 0
	}
	return time.Duration(s.AutoDeleteTime) * time.Second
}

func (s Settings) AdWait() time.Duration {
	if s.AdWaitTime <= 0 {
		return 0
	}
	return time.Duration(s.AdWaitTime) * time.Second
}

// SubscriptionChannel returns the channel users must join, or "" when the gate is off.
func (s Settings) SubscriptionChannel() string {
	if !s.ForceSubscription {
		return ""
	}
	return s.ForceSubscriptionChannel
}
