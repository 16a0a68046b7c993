package adverify

import (
	"errors"
	"math"
	"time"

	"github.com/BatmanBruc/file-share-bot/types"
)

const (
	PendingTTL          = 30 * time.Minute
	ClickTTL            = 60 * time.Minute
	ClickFallbackWindow = 10 * time.Minute
	VerifiedTTL         = 24 * time.Hour
	AccessWindow        = 24 * time.Hour
	MinViewsToSkip      = 3
)

var ErrInvalidTransition = errors.New("invalid ad click transition")

type Event int

const (
	// EventAttempt starts a new attempt: none|any -> pending.
	EventAttempt Event = iota + 1
	// EventClick is the redirect hit: pending|clicked -> clicked for the same param.
	EventClick
	// EventVerify is the bot-side confirmation: clicked|verified -> verified.
	EventVerify
	// EventConvert is the ad network callback for a clicked history entry.
	EventConvert
)

func (e Event) String() string {
	switch e {
	case EventAttempt:
		return "attempt"
	case EventClick:
		return "click"
	case EventVerify:
		return "verify"
	case EventConvert:
		return "convert"
	default:
		return "unknown"
	}
}

// Transition applies ev to st and returns the resulting state. st is not
// modified. The SQL in store/ad_click_store.go applies the same rules.
func Transition(st types.AdClickState, ev Event, fileParam string, now time.Time) (types.AdClickState, error) {
	next := st
	next.History = append([]types.AdHistoryEntry(nil), st.History...)

	switch ev {
	case EventAttempt:
		next.Status = types.AdStatusPending
		next.ClickAttempt = timePtr(now)
		next.FileParam = fileParam
		next.History = append(next.History, types.AdHistoryEntry{ViewTime: now, FileParam: fileParam})
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		return next, nil

	case EventClick:
		if st.Status != types.AdStatusPending && st.Status != types.AdStatusClicked {
			return st, ErrInvalidTransition
		}
		if st.FileParam != fileParam {
			return st, ErrInvalidTransition
		}
		next.Status = types.AdStatusClicked
		next.LastClickTime = timePtr(now)
		if i := lastEntry(next.History, func(e types.AdHistoryEntry) bool {
			return e.FileParam == fileParam && e.ClickTime == nil
		}); i >= 0 {
			next.History[i].ClickTime = timePtr(now)
		}
		return next, nil

	case EventVerify:
		if st.Status != types.AdStatusClicked && st.Status != types.AdStatusVerified {
			return st, ErrInvalidTransition
		}
		next.Status = types.AdStatusVerified
		next.LastViewTime = timePtr(now)
		next.LastClickTime = timePtr(now)
		if i := lastEntry(next.History, func(e types.AdHistoryEntry) bool {
			return e.FileParam == st.FileParam && e.VerifiedTime == nil
		}); i >= 0 {
			if next.History[i].ClickTime == nil {
				next.History[i].ClickTime = timePtr(now)
			}
			next.History[i].VerifiedTime = timePtr(now)
			next.TotalViews++
		}
		return next, nil

	case EventConvert:
		i := lastEntry(next.History, func(e types.AdHistoryEntry) bool {
			return e.ClickTime != nil && e.VerifiedTime == nil
		})
		if i < 0 {
			return st, ErrInvalidTransition
		}
		next.History[i].VerifiedTime = timePtr(now)
		next.Status = types.AdStatusVerified
		next.LastViewTime = timePtr(now)
		next.TotalViews++
		return next, nil
	}

	return st, ErrInvalidTransition
}

// HasRecentVerification reports a verified status younger than VerifiedTTL.
func HasRecentVerification(st *types.AdClickState, now time.Time) bool {
	if st == nil || st.Status != types.AdStatusVerified || st.LastViewTime == nil {
		return false
	}
	return now.Sub(*st.LastViewTime) < VerifiedTTL
}

// ShouldShowAd decides whether a gated access must show an ad first.
func ShouldShowAd(st *types.AdClickState, now time.Time) bool {
	if st == nil {
		return true
	}
	if st.Status == types.AdStatusPending && st.ClickAttempt != nil && now.Sub(*st.ClickAttempt) > PendingTTL {
		return true
	}
	if st.Status == types.AdStatusVerified && st.LastViewTime != nil {
		return now.Sub(*st.LastViewTime) >= VerifiedTTL
	}

	sinceView := since(st.LastViewTime, now)
	sinceAccess := since(st.LastFileAccess, now)
	return sinceView >= VerifiedTTL || (sinceAccess < AccessWindow && st.TotalViews < MinViewsToSkip)
}

// CheckPendingClick decides whether the user may be treated as having
// clicked the ad for fileParam. Order matters: a recent verification wins,
// then the exact param, then any recent click.
func CheckPendingClick(st *types.AdClickState, fileParam string, now time.Time) bool {
	if st == nil {
		return false
	}
	if HasRecentVerification(st, now) {
		return true
	}

	if st.FileParam == fileParam {
		switch st.Status {
		case types.AdStatusClicked:
			clickedAt := st.LastClickTime
			if clickedAt == nil {
				clickedAt = st.ClickAttempt
			}
			return clickedAt != nil && now.Sub(*clickedAt) <= ClickTTL
		case types.AdStatusPending:
			return false
		}
	}

	return st.Status == types.AdStatusClicked &&
		st.LastClickTime != nil &&
		now.Sub(*st.LastClickTime) <= ClickFallbackWindow
}

func lastEntry(h []types.AdHistoryEntry, match func(types.AdHistoryEntry) bool) int {
	for i := len(h) - 1; i >= 0; i-- {
		if match(h[i]) {
			return i
		}
	}
	return -1
}

func since(t *time.Time, now time.Time) time.Duration {
	if t == nil {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(*t)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
