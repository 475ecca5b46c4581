package events

import (
	"math/big"
	"reflect"
	"testing"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestReferrerRegisteredAttributes(t *testing.T) {
	evt := ReferrerRegistered{Referee: addr(0x01), Referrer: addr(0xab)}
	if evt.EventType() != TypeReferrerRegistered {
		t.Fatalf("unexpected event type %q", evt.EventType())
	}
	flat := evt.Event()
	if flat.Type != "referral.referrer.registered" {
		t.Fatalf("unexpected flattened type %q", flat.Type)
	}
	want := map[string]string{
		"referee":  "0x0000000000000000000000000000000000000001",
		"referrer": "0x00000000000000000000000000000000000000ab",
	}
	if !reflect.DeepEqual(flat.Attributes, want) {
		t.Fatalf("unexpected attributes %v", flat.Attributes)
	}
}

func TestRewardDistributedAttributes(t *testing.T) {
	evt := RewardDistributed{
		Referee:    addr(0x01),
		RewardBase: big.NewInt(1_000_000),
		Payouts: []RewardPayout{
			{Recipient: addr(0x02), Level: 0, Amount: big.NewInt(40_000)},
			{Recipient: addr(0xcd), Level: 1, Amount: big.NewInt(10_000)},
		},
		Residual: big.NewInt(950_000),
	}
	if evt.EventType() != TypeRewardDistributed {
		t.Fatalf("unexpected event type %q", evt.EventType())
	}
	flat := evt.Event()
	if flat.Type != "referral.reward.distributed" {
		t.Fatalf("unexpected flattened type %q", flat.Type)
	}
	want := map[string]string{
		"referee":            "0x0000000000000000000000000000000000000001",
		"rewardBase":         "1000000",
		"residual":           "950000",
		"payouts":            "2",
		"payout.0.recipient": "0x0000000000000000000000000000000000000002",
		"payout.0.level":     "0",
		"payout.0.amount":    "40000",
		"payout.1.recipient": "0x00000000000000000000000000000000000000cd",
		"payout.1.level":     "1",
		"payout.1.amount":    "10000",
	}
	if !reflect.DeepEqual(flat.Attributes, want) {
		t.Fatalf("unexpected attributes %v", flat.Attributes)
	}
}

func TestRewardDistributedWithoutPayouts(t *testing.T) {
	flat := RewardDistributed{Referee: addr(0x01)}.Event()
	want := map[string]string{
		"referee":    "0x0000000000000000000000000000000000000001",
		"rewardBase": "0",
		"residual":   "0",
		"payouts":    "0",
	}
	if !reflect.DeepEqual(flat.Attributes, want) {
		t.Fatalf("unexpected attributes %v", flat.Attributes)
	}
}
