package provider

import "testing"

func TestCorrelatorReusesMintedIDs(t *testing.T) {
	c := NewCorrelator()

	first := c.Mint("item_42")
	if first == "" {
		t.Fatal("minted id is empty")
	}
	if got := c.Mint("item_42"); got != first {
		t.Errorf("second mint for same native id = %q, want %q", got, first)
	}
	if got := c.Mint("item_43"); got == first {
		t.Error("distinct native ids share a minted id")
	}
	if !c.Seen("item_42") {
		t.Error("Seen(item_42) = false after mint")
	}
	if c.Seen("item_99") {
		t.Error("Seen(item_99) = true before mint")
	}
}

func TestCorrelatorEmptyNativeID(t *testing.T) {
	c := NewCorrelator()

	a := c.Mint("")
	b := c.Mint("")
	if a == "" || b == "" {
		t.Fatal("empty native id produced empty minted id")
	}
	if a == b {
		t.Error("empty native ids were remembered and reused")
	}
}

func TestCorrelatorScopedPerCall(t *testing.T) {
	a := NewCorrelator()
	b := NewCorrelator()
	if a.Mint("shared") == b.Mint("shared") {
		t.Error("separate correlators produced the same id for one native id")
	}
}
