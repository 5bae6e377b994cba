package geo

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestEnvelope_EmptyInput_Fails(t *testing.T) {
	_, err := Envelope(nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v want ErrInvalidInput", err)
	}
}

func TestEnvelope_SingleRectangle_IsIdentity(t *testing.T) {
	r := Rect(0, 0, 1, 1)
	got, err := Envelope([]orb.Geometry{r})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("envelope of a rectangle changed it: got %v want %v", got, r)
	}
}

func TestEnvelope_DisjointRectangles_SpansBoth(t *testing.T) {
	a := Rect(0, 0, 1, 1)
	b := Rect(2, 2, 3, 3)
	got, err := Envelope([]orb.Geometry{a, b})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	want := [4]float64{0, 0, 3, 3}
	if BBox(got) != want {
		t.Fatalf("bbox=%v want %v", BBox(got), want)
	}
}

func TestEnvelope_OrderIndependentBounds(t *testing.T) {
	a := Rect(-10, 5, -2, 8)
	b := Rect(1, -3, 4, 0)
	ab, err := Envelope([]orb.Geometry{a, b})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	ba, err := Envelope([]orb.Geometry{b, a})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if BBox(ab) != BBox(ba) {
		t.Fatalf("bounds differ by input order: %v vs %v", BBox(ab), BBox(ba))
	}
}

func TestBBox_MatchesRect(t *testing.T) {
	p := Rect(-179.9, -85, 179.9, 85)
	want := [4]float64{-179.9, -85, 179.9, 85}
	if BBox(p) != want {
		t.Fatalf("bbox=%v want %v", BBox(p), want)
	}
}
