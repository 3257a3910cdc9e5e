package menubar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/tuck/internal/platform"
)

func item(title string, width int) Item {
	return Item{Owner: "com." + title, Title: title, Frame: platform.Rect{Width: width}}
}

func control(kind Kind) Item {
	return Item{Owner: ControlOwner, Kind: kind}
}

func orderTitles(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Kind.IsControl() {
			out = append(out, "|"+it.Kind.String()+"|")
			continue
		}
		out = append(out, it.Title)
	}
	return out
}

func TestArrangement_MoveAndRestore(t *testing.T) {
	h := control(KindHiddenControl)
	a, b, c := item("a", 10), item("b", 20), item("c", 30)
	arr := &Arrangement{}
	arr.Reset([]Item{a, h, b, c})

	restore, err := arr.Move(c, LeftOf(h))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "|hidden-control|", "b"}, orderTitles(arr.Order()))
	assert.Equal(t, 20, arr.Width(RegionVisible))

	restore()
	assert.Equal(t, []string{"a", "|hidden-control|", "b", "c"}, orderTitles(arr.Order()))
	restore()
	assert.Equal(t, 50, arr.Width(RegionVisible))
}

func TestArrangement_RestoreIgnoredAfterReset(t *testing.T) {
	h := control(KindHiddenControl)
	a, b := item("a", 10), item("b", 20)
	arr := &Arrangement{}
	arr.Reset([]Item{a, h, b})

	restore, err := arr.Move(b, LeftOf(h))
	require.NoError(t, err)
	arr.Reset([]Item{h, a, b})
	restore()
	assert.Equal(t, []string{"|hidden-control|", "a", "b"}, orderTitles(arr.Order()))
}

func TestArrangement_MoveUnknownAnchor(t *testing.T) {
	a := item("a", 10)
	arr := &Arrangement{}
	arr.Reset([]Item{a})

	_, err := arr.Move(a, RightOf(item("ghost", 1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityUnresolved))
	assert.Equal(t, []string{"a"}, orderTitles(arr.Order()))
}

func TestArrangement_DestinationRegion(t *testing.T) {
	h := control(KindHiddenControl)
	ah := control(KindAlwaysHiddenControl)
	x, y, z := item("x", 1), item("y", 1), item("z", 1)
	arr := &Arrangement{}
	arr.Reset([]Item{x, ah, y, h, z})

	tests := []struct {
		name string
		dest Destination
		want Region
	}{
		{"left of hidden control", LeftOf(h), RegionHidden},
		{"right of hidden control", RightOf(h), RegionVisible},
		{"left of always-hidden control", LeftOf(ah), RegionAlwaysHidden},
		{"right of always-hidden control", RightOf(ah), RegionHidden},
		{"next to visible item", LeftOf(z), RegionVisible},
		{"next to hidden item", RightOf(y), RegionHidden},
		{"next to always-hidden item", LeftOf(x), RegionAlwaysHidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := arr.DestinationRegion(tt.dest)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemKey_FallsBackToPID(t *testing.T) {
	it := Item{OwnerPID: 77, Title: "x"}
	assert.Equal(t, IdentityKey{Owner: "pid:77", Title: "x"}, it.Key())
}

func TestRegionTextRoundTrip(t *testing.T) {
	for _, r := range Regions {
		b, err := r.MarshalText()
		require.NoError(t, err)
		var got Region
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, r, got)
	}
	var r Region
	assert.Error(t, r.UnmarshalText([]byte("sideways")))
}
