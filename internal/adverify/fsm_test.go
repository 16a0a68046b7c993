package adverify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/file-share-bot/types"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func ptr(t time.Time) *time.Time { return &t }

func apply(t *testing.T, st types.AdClickState, ev Event, param string, now time.Time) types.AdClickState {
	t.Helper()
	next, err := Transition(st, ev, param, now)
	require.NoError(t, err, "event %s", ev)
	return next
}

func TestTransitionFullCycle(t *testing.T) {
	st := types.AdClickState{UserID: 7}

	st = apply(t, st, EventAttempt, "p1", at(0))
	assert.Equal(t, types.AdStatusPending, st.Status)
	assert.Equal(t, 0, st.TotalViews)
	require.Len(t, st.History, 1)
	assert.Equal(t, "p1", st.History[0].FileParam)

	st = apply(t, st, EventClick, "p1", at(time.Minute))
	assert.Equal(t, types.AdStatusClicked, st.Status)
	require.NotNil(t, st.History[0].ClickTime)
	assert.Equal(t, at(time.Minute), *st.History[0].ClickTime)

	st = apply(t, st, EventVerify, "", at(2*time.Minute))
	assert.Equal(t, types.AdStatusVerified, st.Status)
	assert.Equal(t, 1, st.TotalViews)
	require.NotNil(t, st.History[0].VerifiedTime)
	assert.Equal(t, at(2*time.Minute), *st.LastViewTime)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	st := apply(t, types.AdClickState{}, EventAttempt, "p1", at(0))
	_ = apply(t, st, EventClick, "p1", at(time.Minute))
	assert.Equal(t, types.AdStatusPending, st.Status)
	assert.Nil(t, st.History[0].ClickTime)
}

func TestTransitionGuards(t *testing.T) {
	_, err := Transition(types.AdClickState{}, EventClick, "p1", at(0))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	st := apply(t, types.AdClickState{}, EventAttempt, "p1", at(0))
	_, err = Transition(st, EventClick, "other", at(time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Transition(st, EventVerify, "", at(time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Transition(st, EventConvert, "", at(time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTotalViewsCountsOnlyVerifiedCycles(t *testing.T) {
	st := types.AdClickState{}
	clock := time.Duration(0)
	tick := func() time.Time {
		clock += time.Minute
		return at(clock)
	}

	for i := 0; i < 4; i++ {
		// abandoned attempt, never clicked
		st = apply(t, st, EventAttempt, "abandoned", tick())
		// clicked but expired, a new attempt replaces it
		st = apply(t, st, EventAttempt, "expired", tick())
		st = apply(t, st, EventClick, "expired", tick())

		st = apply(t, st, EventAttempt, "real", tick())
		st = apply(t, st, EventClick, "real", tick())
		st = apply(t, st, EventVerify, "", tick())
		// re-verifying inside the reuse window must not count twice
		st = apply(t, st, EventVerify, "", tick())
	}

	assert.Equal(t, 4, st.TotalViews)
	verified := 0
	for _, e := range st.History {
		if e.VerifiedTime != nil {
			verified++
		}
	}
	assert.Equal(t, st.TotalViews, verified)
}

func TestConvertVerifiesLatestClickedEntry(t *testing.T) {
	st := apply(t, types.AdClickState{}, EventAttempt, "p1", at(0))
	st = apply(t, st, EventClick, "p1", at(time.Minute))
	st = apply(t, st, EventConvert, "", at(2*time.Minute))

	assert.Equal(t, types.AdStatusVerified, st.Status)
	assert.Equal(t, 1, st.TotalViews)

	_, err := Transition(st, EventConvert, "", at(3*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestShouldShowAd(t *testing.T) {
	now := at(48 * time.Hour)

	tests := []struct {
		name string
		st   *types.AdClickState
		want bool
	}{
		{"no record", nil, true},
		{"heartbeat only", &types.AdClickState{LastFileAccess: ptr(now)}, true},
		{
			"verified recently",
			&types.AdClickState{Status: types.AdStatusVerified, LastViewTime: ptr(now.Add(-time.Hour))},
			false,
		},
		{
			"verified long ago",
			&types.AdClickState{Status: types.AdStatusVerified, LastViewTime: ptr(now.Add(-25 * time.Hour))},
			true,
		},
		{
			"pending expired even with a recent view",
			&types.AdClickState{
				Status:       types.AdStatusPending,
				ClickAttempt: ptr(now.Add(-31 * time.Minute)),
				LastViewTime: ptr(now.Add(-time.Hour)),
				TotalViews:   10,
			},
			true,
		},
		{
			"fresh pending with recent view and many views",
			&types.AdClickState{
				Status:         types.AdStatusPending,
				ClickAttempt:   ptr(now.Add(-5 * time.Minute)),
				LastViewTime:   ptr(now.Add(-time.Hour)),
				LastFileAccess: ptr(now),
				TotalViews:     10,
			},
			false,
		},
		{
			"recent view but few views and recent access",
			&types.AdClickState{
				Status:         types.AdStatusClicked,
				LastViewTime:   ptr(now.Add(-time.Hour)),
				LastFileAccess: ptr(now),
				TotalViews:     1,
			},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldShowAd(tt.st, now))
		})
	}
}

func TestCheckPendingClick(t *testing.T) {
	now := at(10 * time.Hour)

	tests := []struct {
		name  string
		st    *types.AdClickState
		param string
		want  bool
	}{
		{"no record", nil, "p", false},
		{
			"verified within a day, any param",
			&types.AdClickState{Status: types.AdStatusVerified, LastViewTime: ptr(now.Add(-23 * time.Hour)), FileParam: "x"},
			"p", true,
		},
		{
			"clicked same param",
			&types.AdClickState{Status: types.AdStatusClicked, FileParam: "p", LastClickTime: ptr(now.Add(-59 * time.Minute))},
			"p", true,
		},
		{
			"clicked same param expired",
			&types.AdClickState{Status: types.AdStatusClicked, FileParam: "p", LastClickTime: ptr(now.Add(-61 * time.Minute))},
			"p", false,
		},
		{
			"clicked falls back to attempt time",
			&types.AdClickState{Status: types.AdStatusClicked, FileParam: "p", ClickAttempt: ptr(now.Add(-10 * time.Minute))},
			"p", true,
		},
		{
			"pending same param",
			&types.AdClickState{Status: types.AdStatusPending, FileParam: "p", ClickAttempt: ptr(now.Add(-time.Minute))},
			"p", false,
		},
		{
			"clicked other param recently",
			&types.AdClickState{Status: types.AdStatusClicked, FileParam: "other", LastClickTime: ptr(now.Add(-9 * time.Minute))},
			"p", true,
		},
		{
			"clicked other param too long ago",
			&types.AdClickState{Status: types.AdStatusClicked, FileParam: "other", LastClickTime: ptr(now.Add(-11 * time.Minute))},
			"p", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPendingClick(tt.st, tt.param, now))
		})
	}
}

func TestClassifyUserAgent(t *testing.T) {
	tests := []struct {
		ua       string
		platform string
		device   string
	}{
		{"", Unknown, Unknown},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", PlatformWindows, DeviceDesktop},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", PlatformIOS, DeviceMobile},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", PlatformIOS, DeviceTablet},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari", PlatformAndroid, DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 13; SM-X200) Safari", PlatformAndroid, DeviceTablet},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)", PlatformMacOS, DeviceDesktop},
		{"Mozilla/5.0 (SMART-TV; Linux; Tizen 6.0)", PlatformLinux, DeviceTV},
		{"curl/8.0", PlatformOther, Unknown},
	}
	for _, tt := range tests {
		p, d := ClassifyUserAgent(tt.ua)
		assert.Equal(t, tt.platform, p, tt.ua)
		assert.Equal(t, tt.device, d, tt.ua)
	}
}
