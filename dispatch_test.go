package herald

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoundForStatus(t *testing.T) {
	cases := []struct {
		status int
		known  bool
		want   SoundCategory
	}{
		{6, true, SoundTakerFound},
		{13, true, SoundSuccessful},
		{14, true, SoundSuccessful},
		{15, true, SoundSuccessful},
		{0, true, SoundDing},
		{99, true, SoundDing}, // unlisted code falls through, never fails
		{0, false, SoundDing}, // missing tag
	}
	for _, c := range cases {
		if got := SoundForStatus(c.status, c.known); got != c.want {
			t.Errorf("status %d (known=%v): expected %s, got %s", c.status, c.known, c.want, got)
		}
	}
}

func newTestDispatcher(t *testing.T, constrained bool) (*Dispatcher, *Registry, *captureAudio, *captureToaster, *memKV) {
	t.Helper()
	kv := newMemKV()
	registry := NewRegistry()
	require.NoError(t, registry.Put(Identity{Token: "tok-a", Fingerprint: "fp-a"}))
	audio := &captureAudio{}
	toaster := &captureToaster{}
	d := NewDispatcher(NewWatermark(kv), registry, audio, toaster, constrained)
	return d, registry, audio, toaster, kv
}

func TestDispatcher_FreshEventFiresOnce(t *testing.T) {
	d, _, audio, toaster, kv := newTestDispatcher(t, false)

	e := testEvent("ev-1", "coord", 100, "fp-a", map[string]string{TagStatus: "6", TagOrderID: "42"})
	d.HandleAccepted(e)

	assert.Equal(t, 1, audio.count(), "sound plays exactly once")
	assert.Equal(t, SoundTakerFound, audio.last())
	assert.Equal(t, 1, toaster.count())
	assert.Equal(t, "100", kv.get(watermarkKey))
}

func TestDispatcher_BacklogIsSilent(t *testing.T) {
	d, _, audio, toaster, _ := newTestDispatcher(t, false)

	d.HandleAccepted(testEvent("ev-1", "coord", 100, "fp-a", map[string]string{TagStatus: "6"}))
	// Older event arriving after the watermark moved: stored upstream, no
	// side effects here.
	d.HandleAccepted(testEvent("ev-2", "coord", 50, "fp-a", map[string]string{TagStatus: "13"}))

	assert.Equal(t, 1, audio.count())
	assert.Equal(t, 1, toaster.count())
}

func TestDispatcher_ConstrainedDisplaySkipsToast(t *testing.T) {
	d, _, audio, toaster, _ := newTestDispatcher(t, true)

	d.HandleAccepted(testEvent("ev-1", "coord", 100, "fp-a", nil))

	assert.Equal(t, 1, audio.count(), "sound still plays in constrained mode")
	assert.Equal(t, 0, toaster.count())
}

func TestDispatcher_UnknownStatusPlaysDing(t *testing.T) {
	d, _, audio, _, _ := newTestDispatcher(t, false)

	d.HandleAccepted(testEvent("ev-1", "coord", 100, "fp-a", map[string]string{TagStatus: "77"}))
	assert.Equal(t, SoundDing, audio.last())

	d.HandleAccepted(testEvent("ev-2", "coord", 200, "fp-a", nil))
	assert.Equal(t, SoundDing, audio.last())
}

func TestDispatcher_ClickThroughNavigates(t *testing.T) {
	d, _, _, toaster, _ := newTestDispatcher(t, false)

	var navigated []NavigationTarget
	d.SetNavigator(func(target NavigationTarget) { navigated = append(navigated, target) })

	d.HandleAccepted(testEvent("ev-1", "coord", 100, "fp-a", map[string]string{TagOrderID: "42"}))
	toaster.clickLast()

	require.Len(t, navigated, 1)
	assert.Equal(t, "tok-a", navigated[0].IdentityToken)
	assert.Equal(t, "42", navigated[0].OrderID)
}

func TestDispatcher_ClickThroughNoopWhenIdentityGone(t *testing.T) {
	d, registry, _, toaster, _ := newTestDispatcher(t, false)

	var navigated int
	d.SetNavigator(func(NavigationTarget) { navigated++ })

	d.HandleAccepted(testEvent("ev-1", "coord", 100, "fp-a", map[string]string{TagOrderID: "42"}))

	// Slot removed between notification and click.
	registry.Remove("tok-a")
	toaster.clickLast()

	assert.Equal(t, 0, navigated)
}

func TestDispatcher_ClickThroughNoopWithoutOrder(t *testing.T) {
	d, _, _, toaster, _ := newTestDispatcher(t, false)

	var navigated int
	d.SetNavigator(func(NavigationTarget) { navigated++ })

	d.HandleAccepted(testEvent("ev-1", "coord", 100, "fp-a", nil))
	toaster.clickLast()

	assert.Equal(t, 0, navigated)
}
