// Property-based tests for the contested resource split arithmetic.
package arbiter

import (
	"math/rand"
	"testing"

	"pgregory.net/rapid"

	"royalbot/internal/model"
)

// simResource mirrors the locked-row state the share function sees.
type simResource struct {
	kind           model.ResourceKind
	totalValue     int64
	totalSlots     int64
	remainingValue int64
	remainingSlots int64
}

// drain runs the full claim sequence against an in-memory resource and
// returns every paid share in order.
func drain(a *Arbiter, res *simResource) []int64 {
	shares := make([]int64, 0, res.remainingSlots)
	for res.remainingSlots > 0 {
		amount := a.share(&model.Resource{
			Kind:           res.kind,
			TotalValue:     res.totalValue,
			TotalSlots:     res.totalSlots,
			RemainingValue: res.remainingValue,
			RemainingSlots: res.remainingSlots,
		})
		shares = append(shares, amount)
		res.remainingValue -= amount
		res.remainingSlots--
	}
	return shares
}

// TestRandomSplitConservationProperty checks that draining a random-split
// resource pays every slot at least 1 and sums to exactly the pot.
func TestRandomSplitConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		slots := rapid.Int64Range(1, 200).Draw(t, "slots")
		value := rapid.Int64Range(slots, 1000000).Draw(t, "value")
		seed := rapid.Int64().Draw(t, "seed")

		a := &Arbiter{rng: rand.New(rand.NewSource(seed)).Int63n}
		res := &simResource{
			kind:           model.KindRedPacket,
			totalValue:     value,
			totalSlots:     slots,
			remainingValue: value,
			remainingSlots: slots,
		}

		shares := drain(a, res)

		if int64(len(shares)) != slots {
			t.Fatalf("expected %d shares, got %d", slots, len(shares))
		}
		var sum int64
		for i, s := range shares {
			if s < 1 {
				t.Fatalf("share %d is %d, every slot must pay at least 1", i, s)
			}
			sum += s
		}
		if sum != value {
			t.Fatalf("shares sum to %d, pot was %d", sum, value)
		}
		if res.remainingValue != 0 {
			t.Fatalf("pot not drained, %d left", res.remainingValue)
		}
	})
}

// TestRandomSplitMidStateProperty checks that after any prefix of claims the
// remaining value can still cover the remaining slots.
func TestRandomSplitMidStateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		slots := rapid.Int64Range(2, 100).Draw(t, "slots")
		value := rapid.Int64Range(slots, 100000).Draw(t, "value")
		seed := rapid.Int64().Draw(t, "seed")

		a := &Arbiter{rng: rand.New(rand.NewSource(seed)).Int63n}
		remainingValue, remainingSlots := value, slots
		for remainingSlots > 0 {
			amount := a.share(&model.Resource{
				Kind:           model.KindRedPacket,
				TotalValue:     value,
				TotalSlots:     slots,
				RemainingValue: remainingValue,
				RemainingSlots: remainingSlots,
			})
			remainingValue -= amount
			remainingSlots--
			if remainingValue < remainingSlots {
				t.Fatalf("remaining value %d cannot cover %d slots", remainingValue, remainingSlots)
			}
		}
	})
}

// TestFirstPlaySplitProperty checks the fixed equal-share payout: every slot
// but the last pays total/slots, the last absorbs the division remainder, and
// the pot is conserved.
func TestFirstPlaySplitProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		slots := rapid.Int64Range(1, 50).Draw(t, "slots")
		value := rapid.Int64Range(slots, 100000).Draw(t, "value")

		a := &Arbiter{}
		res := &simResource{
			kind:           model.KindFirstPlay,
			totalValue:     value,
			totalSlots:     slots,
			remainingValue: value,
			remainingSlots: slots,
		}

		shares := drain(a, res)

		equal := value / slots
		var sum int64
		for i, s := range shares {
			sum += s
			if int64(i) < slots-1 && s != equal {
				t.Fatalf("share %d is %d, expected equal share %d", i, s, equal)
			}
		}
		if sum != value {
			t.Fatalf("shares sum to %d, pot was %d", sum, value)
		}
	})
}

// TestSpawnValidation checks the slot and value bounds rejected by Spawn.
func TestSpawnValidation(t *testing.T) {
	cases := []struct {
		name  string
		value int64
		slots int64
		ok    bool
	}{
		{"zero slots", 100, 0, false},
		{"negative slots", 100, -1, false},
		{"value below slots", 4, 5, false},
		{"value equals slots", 5, 5, true},
		{"single slot", 1, 1, true},
		{"typical", 500, 8, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			valid := tc.slots >= 1 && tc.value >= tc.slots
			if valid != tc.ok {
				t.Fatalf("value=%d slots=%d: expected ok=%v", tc.value, tc.slots, tc.ok)
			}
		})
	}
}
